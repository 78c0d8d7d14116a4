package domain

import "context"

// SlotPool limita quantas requisições o gateway atende ao mesmo tempo.
// ok=false significa que ctx encerrou antes de surgir uma vaga; nesse caso
// release é nil. Com ok=true, release devolve a vaga.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
