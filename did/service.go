package did

// Service is a service endpoint entry in a DID document.
type Service struct {
	id       DIDURL
	svcType  string
	endpoint string
}

// NewService assembles a service entry.
func NewService(id DIDURL, serviceType, endpoint string) (*Service, error) {
	if id.IsEmpty() || id.Fragment == "" {
		return nil, newError(CodeIllegalArgument, "service id must carry a fragment")
	}
	if serviceType == "" {
		return nil, newError(CodeIllegalArgument, "service type is empty")
	}
	if endpoint == "" {
		return nil, newError(CodeIllegalArgument, "service endpoint is empty")
	}
	return &Service{id: id, svcType: serviceType, endpoint: endpoint}, nil
}

// ID returns the service's DIDURL.
func (s *Service) ID() DIDURL { return s.id }

// Type returns the service type.
func (s *Service) Type() string { return s.svcType }

// ServiceEndpoint returns the endpoint address.
func (s *Service) ServiceEndpoint() string { return s.endpoint }

// ObjectTypes implements Object.
func (s *Service) ObjectTypes() []string { return []string{s.svcType} }
