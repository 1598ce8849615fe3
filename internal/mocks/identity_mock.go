package mocks

import (
	"github.com/benmeehan/geo-distance/pkg/identity"
	"github.com/stretchr/testify/mock"
)

// MockInstanceInfo is a mock implementation of the InstanceInfoInterface
type MockInstanceInfo struct {
	mock.Mock
}

func (m *MockInstanceInfo) LoadInstanceInfo() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockInstanceInfo) GetInstanceID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockInstanceInfo) GetIdentity() *identity.Identity {
	args := m.Called()
	return args.Get(0).(*identity.Identity)
}
