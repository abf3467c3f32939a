package storage

import (
	"context"
	"os"
)

type FileNutritionState struct {
	FilePath string
}

func NewFileNutritionState(filePath string) *FileNutritionState {
	return &FileNutritionState{FilePath: filePath}
}

func (n *FileNutritionState) Load(ctx context.Context) ([]byte, error) {
	return os.ReadFile(n.FilePath)
}
