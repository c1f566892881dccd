package gate

import (
	"extract-gateway/middleware/ratelimit"
	rldomain "extract-gateway/middleware/ratelimit/domain"

	"github.com/gin-gonic/gin"
)

const ginAdmissionKey = "gate.admission"

// Gin é o mesmo fluxo do Middleware para rotas gin. A admissão fica no
// contexto da requisição e também em c.Get(ginAdmissionKey) via GinAdmission.
func (g *Gate) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		r := c.Request
		adm, err := g.Admit(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			rj := g.rejected(r, adm, err)
			rj.Write(c.Writer)
			c.Abort()
			return
		}
		g.record(r.Context(), r, adm, rldomain.OutcomeAllowed)

		if g.opts.AddUsageHeaders {
			ratelimit.SetDecisionHeaders(c.Writer.Header(), adm.Rate)
			setUsageHeaders(c.Writer.Header(), adm)
		}

		c.Request = r.WithContext(WithAdmission(r.Context(), adm))
		c.Set(ginAdmissionKey, adm)
		c.Next()

		g.commitAfter(r, adm, c.Writer.Status())
	}
}

func GinAdmission(c *gin.Context) (Admission, bool) {
	v, ok := c.Get(ginAdmissionKey)
	if !ok {
		return Admission{}, false
	}
	adm, ok := v.(Admission)
	return adm, ok
}
