package models

// PackagePage is the body of the paginated packages endpoint.
type PackagePage struct {
	Data       []Package   `json:"data"`
	Pagination *Pagination `json:"pagination"`
}

type PackageEnvelope struct {
	Data *Package `json:"data"`
}

type SearchState struct {
	Status      string      `json:"status"`
	Packages    []Package   `json:"packages"`
	Pagination  *Pagination `json:"pagination"`
	HasMore     bool        `json:"has_more"`
	LoadingMore bool        `json:"loading_more"`
	Error       string      `json:"error,omitempty"`
}

type DetailState struct {
	Loading bool     `json:"loading"`
	Active  *Package `json:"active"`
	Error   string   `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    int               `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}
