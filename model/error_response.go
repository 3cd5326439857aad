package model

import "encoding/json"

// ErrorResponse is the body the API returns with non-2xx responses.
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (r *ErrorResponse) UnmarshalJSON(data []byte) error {
	type alias ErrorResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Details == nil {
		a.Details = []ErrorDetail{}
	}
	*r = ErrorResponse(a)
	return nil
}
