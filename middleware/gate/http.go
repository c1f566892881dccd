package gate

import (
	"bufio"
	"errors"
	"net"
	"net/http"

	"extract-gateway/gating/domain"
	"extract-gateway/middleware/ratelimit"
	rldomain "extract-gateway/middleware/ratelimit/domain"

	"github.com/sirupsen/logrus"
)

// Middleware protege next com o fluxo completo do gate.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adm, err := g.Admit(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			g.rejected(r, adm, err).Write(w)
			return
		}
		g.record(r.Context(), r, adm, rldomain.OutcomeAllowed)

		if g.opts.AddUsageHeaders {
			ratelimit.SetDecisionHeaders(w.Header(), adm.Rate)
			setUsageHeaders(w.Header(), adm)
		}

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(WithAdmission(r.Context(), adm)))
		g.commitAfter(r, adm, sw.Status())
	})
}

// rejected classifica, loga e registra a rejeição.
func (g *Gate) rejected(r *http.Request, adm Admission, err error) Rejection {
	rj := Classify(err)
	fields := logrus.Fields{
		"code":   rj.Body.Error.Code,
		"method": r.Method,
		"path":   r.URL.Path,
	}
	if adm.Principal.Account.ID != "" {
		fields["account_id"] = adm.Principal.Account.ID
		fields["key_id"] = adm.Principal.KeyID
	}
	if rj.Status == http.StatusServiceUnavailable {
		var ie *domain.InfrastructureError
		if errors.As(err, &ie) {
			fields["op"] = ie.Op
		}
		g.log.WithError(err).WithFields(fields).Error("gate failed closed")
	} else {
		g.log.WithFields(fields).Debug("request rejected")
	}
	g.record(r.Context(), r, adm, rj.Body.Error.Code)
	return rj
}

// statusWriter guarda o status que o handler escreveu. Sem WriteHeader
// explícito vale 200, como no net/http.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
