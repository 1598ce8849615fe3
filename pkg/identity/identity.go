package identity

import (
	"errors"
	"os"

	"github.com/benmeehan/geo-distance/pkg/file"
	"github.com/google/uuid"
)

// Identity holds the service instance's unique identifier and an optional name.
type Identity struct {
	ID   string `json:"instance_id,omitempty"`
	Name string `json:"name,omitempty"`
}

// InstanceInfoInterface defines methods for managing the instance identity.
type InstanceInfoInterface interface {
	LoadInstanceInfo() error
	GetInstanceID() string
	GetIdentity() *Identity
}

// InstanceInfo persists the identity in a JSON file so restarts keep the same ID.
type InstanceInfo struct {
	InstanceInfoFile string
	Identity         Identity
	fileOps          file.FileOperations
}

// NewInstanceInfo initializes a new InstanceInfo instance.
func NewInstanceInfo(filePath string, fileOps file.FileOperations) *InstanceInfo {
	return &InstanceInfo{
		InstanceInfoFile: filePath,
		fileOps:          fileOps,
	}
}

// LoadInstanceInfo reads the identity file. When the file is missing or holds no ID a
// fresh UUID is generated and written back.
func (i *InstanceInfo) LoadInstanceInfo() error {
	err := i.fileOps.ReadJsonFile(i.InstanceInfoFile, &i.Identity)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if i.Identity.ID != "" {
		return nil
	}

	i.Identity.ID = uuid.New().String()
	return i.fileOps.WriteJsonFile(i.InstanceInfoFile, i.Identity)
}

// GetIdentity returns the current Identity.
func (i *InstanceInfo) GetIdentity() *Identity {
	return &i.Identity
}

// GetInstanceID returns the current instance ID.
func (i *InstanceInfo) GetInstanceID() string {
	return i.Identity.ID
}
