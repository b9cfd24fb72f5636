package channel

import "errors"

var ErrChannelNotSupported = errors.New("channel is not supported")

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	items := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		items[a.ChannelID()] = a
	}
	return &Registry{adapters: items}
}

func (r *Registry) Get(channelID string) (Adapter, error) {
	adapter, ok := r.adapters[channelID]
	if !ok {
		return nil, ErrChannelNotSupported
	}
	return adapter, nil
}

func (r *Registry) ChannelIDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}
