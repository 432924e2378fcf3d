package handler

// Response is the standard envelope used by every JSON endpoint.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func errorResponse(err error, message string) Response {
	resp := Response{
		Success: false,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// internalErrorResponse is the fixed body for every 5xx response. The
// failure cause stays in logs; response bodies never carry internals.
func internalErrorResponse(message string) Response {
	return Response{
		Success: false,
		Error:   "internal_error",
		Message: message,
	}
}
