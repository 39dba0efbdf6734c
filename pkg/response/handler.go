package response

// CallbackHandler is a Handler backed by functions. Nil functions ignore the call.
type CallbackHandler struct {
	onResult func(id string, result interface{})
	onError  func(id string, message string)
}

var _ Handler = &CallbackHandler{}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(onResult func(id string, result interface{}), onError func(id string, message string)) *CallbackHandler {
	return &CallbackHandler{onResult: onResult, onError: onError}
}

// SendResponse calls the result callback.
func (h *CallbackHandler) SendResponse(id string, result interface{}) {
	if h.onResult != nil {
		h.onResult(id, result)
	}
}

// SendError calls the error callback.
func (h *CallbackHandler) SendError(id string, message string) {
	if h.onError != nil {
		h.onError(id, message)
	}
}
