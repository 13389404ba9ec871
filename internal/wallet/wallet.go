// Package wallet is the in-process mirror of the externally owned wallet
// connection. This subsystem only consumes its observable state: connected
// or not, and the connected address.
package wallet

import (
	"sort"
	"sync"

	"admin-auth/internal/util"
)

// State is a snapshot of the wallet connection.
type State struct {
	Connected bool
	Address   string
}

// Wallet holds the current connection state and an observer list. Observers
// are invoked synchronously, in subscription order, on every change.
type Wallet struct {
	mu    sync.RWMutex
	state State
	subs  map[int]func(State)
	next  int
}

// New returns a disconnected wallet.
func New() *Wallet {
	return &Wallet{subs: make(map[int]func(State))}
}

// Connect records a connection to the given address and notifies observers.
// Reconnecting with a different address counts as a change.
func (w *Wallet) Connect(address string) {
	address = util.NormalizeAddress(address)
	w.mu.Lock()
	if w.state.Connected && w.state.Address == address {
		w.mu.Unlock()
		return
	}
	w.state = State{Connected: true, Address: address}
	subs, state := w.snapshotLocked()
	w.mu.Unlock()
	notify(subs, state)
}

// Disconnect clears the connection and notifies observers.
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	if !w.state.Connected {
		w.mu.Unlock()
		return
	}
	w.state = State{}
	subs, state := w.snapshotLocked()
	w.mu.Unlock()
	notify(subs, state)
}

// State returns the current snapshot.
func (w *Wallet) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// IsConnected reports whether a wallet is connected.
func (w *Wallet) IsConnected() bool {
	return w.State().Connected
}

// Address returns the connected address, or "" when disconnected.
func (w *Wallet) Address() string {
	return w.State().Address
}

// Subscribe registers an observer and returns its unsubscribe func.
func (w *Wallet) Subscribe(fn func(State)) func() {
	w.mu.Lock()
	id := w.next
	w.next++
	w.subs[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

func (w *Wallet) snapshotLocked() ([]func(State), State) {
	ids := make([]int, 0, len(w.subs))
	for id := range w.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(State), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, w.subs[id])
	}
	return subs, w.state
}

func notify(subs []func(State), state State) {
	for _, fn := range subs {
		fn(state)
	}
}
