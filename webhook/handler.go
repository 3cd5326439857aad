package webhook

import (
	"io"
	"net/http"

	"github.com/LeventeLantos/zenvia-go/model"
)

const maxEventBytes = 1 << 20

// ServeHTTP decodes the request body as an event and dispatches it. Once the
// event is decoded the response is 200 with an empty body, whatever the
// handler did.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes+1))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxEventBytes {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	event, err := model.DecodeEvent(body)
	if err != nil {
		c.logger.Warn("rejected webhook payload", "path", c.path, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c.Dispatch(r.Context(), event)
	w.WriteHeader(http.StatusOK)
}

// Register binds the controller to POST on its path.
func (c *Controller) Register(mux *http.ServeMux) {
	mux.Handle(c.Pattern(), c)
}

// Pattern is the ServeMux pattern for the controller's path. The root path
// matches "/" only, not the whole tree.
func (c *Controller) Pattern() string {
	if c.path == "/" {
		return http.MethodPost + " /{$}"
	}
	return http.MethodPost + " " + c.path
}
