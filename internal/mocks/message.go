package mocks

import "github.com/stretchr/testify/mock"

// Message implements mqtt.Message for testing
type Message struct {
	mock.Mock
}

// NewMessage returns a message that answers Topic and Payload with the given values.
func NewMessage(topic string, payload []byte) *Message {
	msg := new(Message)
	msg.On("Topic").Return(topic).Maybe()
	msg.On("Payload").Return(payload)
	return msg
}

func (m *Message) Payload() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *Message) Topic() string {
	args := m.Called()
	return args.String(0)
}

func (m *Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte         { return 1 }
func (m *Message) Retained() bool    { return false }
func (m *Message) MessageID() uint16 { return 1 }
func (m *Message) Ack()              {}
