package utils

import "sync"

// KeyedMutex serializes work per integer key. Every tournament mutation
// (registration, bracket generation, result recording, chat append)
// runs under the lock for that tournament id, while operations on
// different tournaments proceed in parallel.
type KeyedMutex struct {
	locks sync.Map // int -> *sync.Mutex
}

// Lock acquires the mutex for the key and returns its unlock function.
//
//	unlock := mu.Lock(tournamentID)
//	defer unlock()
func (k *KeyedMutex) Lock(key int) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
