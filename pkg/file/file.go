package file

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FileOperations defines the file access the service needs at startup.
type FileOperations interface {
	IsFileExists(filePath string) (bool, error)
	ReadFileRaw(filePath string) ([]byte, error)
	ReadJsonFile(filePath string, v any) error
	ReadYamlFile(filePath string, v any) error
	WriteJsonFile(filePath string, data any) error
}

// FileService implements FileOperations on the local filesystem.
type FileService struct{}

// NewFileService creates a new instance of FileService.
func NewFileService() *FileService {
	return &FileService{}
}

// IsFileExists reports whether filePath exists. Permission errors are returned as-is.
func (fs *FileService) IsFileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// ReadFileRaw reads the whole file at filePath.
func (fs *FileService) ReadFileRaw(filePath string) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// ReadJsonFile decodes JSON from filePath into v.
func (fs *FileService) ReadJsonFile(filePath string, v any) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewDecoder(f).Decode(v)
}

// ReadYamlFile decodes YAML from filePath into v. Unknown keys are rejected.
func (fs *FileService) ReadYamlFile(filePath string, v any) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s: %w", filePath, err)
	}
	return nil
}

// WriteJsonFile writes data as indented JSON through a temp file and rename.
func (fs *FileService) WriteJsonFile(filePath string, data any) error {
	tempFile := filePath + ".tmp"

	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}
