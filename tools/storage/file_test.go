package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNutritionState(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{
			name:     "basic database load",
			filename: "nutrition.csv",
			data:     []byte("Food_Item,Calories,Protein_g,Fat_g,Carbs_g\nRice,130,2.7,0.3,28\n"),
		},
		{
			name:     "header only",
			filename: "empty.csv",
			data:     []byte("Food_Item,Calories,Protein_g,Fat_g,Carbs_g\n"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filePath := filepath.Join(tmpDir, tt.filename)
			require.NoError(t, os.WriteFile(filePath, tt.data, 0644))

			state := NewFileNutritionState(filePath)
			loaded, err := state.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.data, loaded)
		})
	}

	t.Run("load nonexistent file", func(t *testing.T) {
		state := NewFileNutritionState(filepath.Join(tmpDir, "nonexistent.csv"))
		_, err := state.Load(context.Background())
		assert.Error(t, err)
		assert.True(t, os.IsNotExist(err))
	})
}
