package api

// Endpoint status values accepted by the endpoints resource.
const (
	EndpointStatusActive   = "active"
	EndpointStatusInactive = "inactive"
)

// User is the representation of a single user returned by the users resource.
type User struct {
	UserID  string   `json:"userId"`
	IsAdmin bool     `json:"isAdmin"`
	Roles   []string `json:"roles"`
}

// UserSummary is an entry of the user list.
type UserSummary struct {
	UserID string `json:"userId"`
}

// Endpoint describes a named routing endpoint of the integration runtime.
type Endpoint struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Address  string `json:"address,omitempty"`
	IsActive bool   `json:"isActive"`
}

// List wraps a collection response with its element count.
type List[T any] struct {
	Count int `json:"count"`
	List  []T `json:"list"`
}

// NewList builds a List, never serializing a null list.
func NewList[T any](items []T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Count: len(items), List: items}
}

// EndpointStatusRequest is the payload used to switch an endpoint on or off.
type EndpointStatusRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Message is a plain acknowledgement body.
type Message struct {
	Message string `json:"message"`
}

// UserDeleted acknowledges the removal of a user.
type UserDeleted struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// LoginResponse carries the bearer token issued after a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
}

// ReadinessResponse is the static body of the readiness probe.
type ReadinessResponse struct {
	Status string `json:"status"`
}
