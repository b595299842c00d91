package contacts

import (
	"context"
	"strings"
	"sync"
)

// DirectoryStub serves fixed contacts and counts remote calls.
type DirectoryStub struct {
	mu             sync.Mutex
	Connections    []Contact
	Members        []Contact
	connectionsErr error
	directoryErr   error
	Calls          int
}

func NewDirectoryStub() *DirectoryStub {
	return &DirectoryStub{}
}

func (d *DirectoryStub) Directory(context.Context) (Directory, error) {
	return d, nil
}

func (d *DirectoryStub) ListConnections(context.Context) ([]Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls++
	if d.connectionsErr != nil {
		return nil, d.connectionsErr
	}
	return d.Connections, nil
}

func (d *DirectoryStub) SearchDirectory(_ context.Context, query string) ([]Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls++
	if d.directoryErr != nil {
		return nil, d.directoryErr
	}
	var result []Contact
	for _, c := range d.Members {
		if query == "" || strings.Contains(strings.ToLower(c.DisplayName+" "+c.Email), strings.ToLower(query)) {
			result = append(result, c)
		}
	}
	return result, nil
}

func (d *DirectoryStub) SetErrors(connectionsErr, directoryErr error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectionsErr = connectionsErr
	d.directoryErr = directoryErr
}

func (d *DirectoryStub) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Calls
}
