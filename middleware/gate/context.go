package gate

import "context"

type admissionKey struct{}

func WithAdmission(ctx context.Context, adm Admission) context.Context {
	return context.WithValue(ctx, admissionKey{}, adm)
}

// FromContext devolve a conta resolvida e os limites, para o handler
// protegido reportar uso ao cliente.
func FromContext(ctx context.Context) (Admission, bool) {
	adm, ok := ctx.Value(admissionKey{}).(Admission)
	return adm, ok
}
