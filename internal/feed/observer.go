package feed

import (
	"sync"

	"github.com/abelbrown/soundprints/internal/sound"
)

// NoIndex is passed to OnItemInserted when an uploaded item is not part of
// the visible collection.
const NoIndex = -1

// Observer receives collection changes. Methods are called on the model's
// loop goroutine, in order, and must not block on the Model itself.
type Observer interface {
	// OnReplaced delivers the whole collection after a reload.
	OnReplaced(items []sound.Item)
	// OnAppended delivers only the items added to the end by a page.
	OnAppended(items []sound.Item)
	// OnItemInserted reports a completed upload; index is NoIndex when the
	// item does not match the current filter.
	OnItemInserted(item sound.Item, index int)
	OnUploadFailed(err error)
	OnFetchFailed(err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Replaced     func(items []sound.Item)
	Appended     func(items []sound.Item)
	ItemInserted func(item sound.Item, index int)
	UploadFailed func(err error)
	FetchFailed  func(err error)
}

func (f ObserverFuncs) OnReplaced(items []sound.Item) {
	if f.Replaced != nil {
		f.Replaced(items)
	}
}

func (f ObserverFuncs) OnAppended(items []sound.Item) {
	if f.Appended != nil {
		f.Appended(items)
	}
}

func (f ObserverFuncs) OnItemInserted(item sound.Item, index int) {
	if f.ItemInserted != nil {
		f.ItemInserted(item, index)
	}
}

func (f ObserverFuncs) OnUploadFailed(err error) {
	if f.UploadFailed != nil {
		f.UploadFailed(err)
	}
}

func (f ObserverFuncs) OnFetchFailed(err error) {
	if f.FetchFailed != nil {
		f.FetchFailed(err)
	}
}

// observers is a subscription list safe to mutate from any goroutine.
type observers struct {
	mu   sync.Mutex
	next int
	subs map[int]Observer
	// order keeps delivery in subscription order
	order []int
}

func (o *observers) add(obs Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]Observer)
	}
	id := o.next
	o.next++
	o.subs[id] = obs
	o.order = append(o.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			for i, v := range o.order {
				if v == id {
					o.order = append(o.order[:i:i], o.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (o *observers) each(fn func(Observer)) {
	o.mu.Lock()
	list := make([]Observer, 0, len(o.order))
	for _, id := range o.order {
		list = append(list, o.subs[id])
	}
	o.mu.Unlock()

	for _, obs := range list {
		fn(obs)
	}
}
