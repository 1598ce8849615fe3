package service_registry

// Service is the lifecycle contract of every registered service.
type Service interface {
	Start() error
	Stop() error
}

// Resubscriber is implemented by services that hold broker subscriptions.
type Resubscriber interface {
	Resubscribe() error
}
