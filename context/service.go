package context

// Service is the lifecycle contract every registered service implements.
// Configure must be cheap and side-effect free towards other services;
// cross-service lookups belong in Start, after everything is configured.
type Service interface {
	Id() string
	Configure(ctx *Context) error
	Start() error
	Shutdown()
}

// DefaultService is the embeddable base for services.
// It stores the owning context so embedders can reach sibling services.
type DefaultService struct {
	ctx *Context
}

func (svc *DefaultService) Configure(ctx *Context) error {
	svc.ctx = ctx
	return nil
}

func (svc *DefaultService) Start() error {
	return nil
}

func (svc *DefaultService) Shutdown() {}

// Service looks up a sibling service by id.
func (svc *DefaultService) Service(id string) Service {
	if svc.ctx == nil {
		return nil
	}
	return svc.ctx.Service(id)
}
