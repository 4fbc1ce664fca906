package database

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	svc, err := NewService(path)
	require.NoError(t, err)
	return svc, path
}

func TestLoadMissingFile(t *testing.T) {
	svc, _ := newTestService(t)

	data, err := svc.Load()
	require.NoError(t, err)
	assert.NotNil(t, data.Animals)
	assert.NotNil(t, data.Files)
	assert.Empty(t, data.Animals)
}

func TestUpdatePersists(t *testing.T) {
	svc, path := newTestService(t)

	err := svc.Update(func(d *Data) error {
		d.Animals = append(d.Animals, AnimalSelection{Animal: "cat", Timestamp: "2025-01-01T00:00:00"})
		return nil
	})
	require.NoError(t, err)

	reopened, err := NewService(path)
	require.NoError(t, err)
	data, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, data.Animals, 1)
	assert.Equal(t, "cat", data.Animals[0].Animal)
}

func TestUpdateErrorDoesNotWrite(t *testing.T) {
	svc, path := newTestService(t)

	err := svc.Update(func(d *Data) error {
		d.Animals = append(d.Animals, AnimalSelection{Animal: "dog"})
		return errors.New("abort")
	})
	assert.EqualError(t, err, "abort")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConcurrentUpdates(t *testing.T) {
	svc, _ := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Update(func(d *Data) error {
				d.Files = append(d.Files, FileRecord{Filename: "f", Size: 1})
				return nil
			}))
		}()
	}
	wg.Wait()

	data, err := svc.Load()
	require.NoError(t, err)
	assert.Len(t, data.Files, 25)
}

func TestLoadCorruptFile(t *testing.T) {
	svc, path := newTestService(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := svc.Load()
	assert.Error(t, err)

	stats := svc.Health()
	assert.Equal(t, "down", stats["status"])
}

func TestLoadNullArrays(t *testing.T) {
	svc, path := newTestService(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"animals": null}`), 0o644))

	data, err := svc.Load()
	require.NoError(t, err)
	assert.NotNil(t, data.Animals)
	assert.NotNil(t, data.Files)
}

func TestHealth(t *testing.T) {
	svc, _ := newTestService(t)

	stats := svc.Health()
	assert.Equal(t, "up", stats["status"])
	assert.Equal(t, "0", stats["animal_records"])
	assert.NotEmpty(t, stats["message"])

	require.NoError(t, svc.Update(func(d *Data) error {
		d.Animals = append(d.Animals, AnimalSelection{Animal: "elephant"})
		return nil
	}))

	stats = svc.Health()
	assert.Equal(t, "1", stats["animal_records"])
	assert.NotEmpty(t, stats["size_bytes"])
	svc.Close()
}
