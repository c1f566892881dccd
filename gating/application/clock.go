package application

import "time"

// Clock existe para os testes controlarem a virada de mês.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
