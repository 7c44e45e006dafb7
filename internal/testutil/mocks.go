// Package testutil provides mock implementations for interfaces defined
// in the core analysis library (pkg/mwcp and subpackages). These mocks
// facilitate unit testing by isolating components.
package testutil

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/primmus/DC3-MWCP/pkg/mwcp"
	"github.com/primmus/DC3-MWCP/pkg/mwcp/inspect"
	"github.com/primmus/DC3-MWCP/pkg/mwcp/parser"
)

// MockResolver provides a mock implementation of the parser.Resolver
// interface. Configure expectations using testify/mock methods
// (e.g., .On("Resolve", ...).Return(...)).
type MockResolver struct {
	mock.Mock
}

// Resolve mocks the Resolve method.
func (m *MockResolver) Resolve(spec string) []parser.Candidate {
	args := m.Called(spec)
	candidates, _ := args.Get(0).([]parser.Candidate)
	return candidates
}

// MockInspector provides a mock implementation of the mwcp.Inspector
// interface.
type MockInspector struct {
	mock.Mock
}

// Inspect mocks the Inspect method.
func (m *MockInspector) Inspect(data []byte) (inspect.Facts, error) {
	args := m.Called(data)
	facts, _ := args.Get(0).(inspect.Facts)
	return facts, args.Error(1)
}

// MockEncodingHandler provides a mock implementation of the
// encoding.EncodingHandler interface.
type MockEncodingHandler struct {
	mock.Mock
}

// ToText mocks the ToText method.
func (m *MockEncodingHandler) ToText(value any) (string, error) {
	args := m.Called(value)
	text, _ := args.Get(0).(string)
	return text, args.Error(1)
}

// DecodeBytes mocks the DecodeBytes method.
func (m *MockEncodingHandler) DecodeBytes(data []byte) (string, error) {
	args := m.Called(data)
	text, _ := args.Get(0).(string)
	return text, args.Error(1)
}

// MockHooks provides a mock implementation of the mwcp.Hooks interface.
// Hook methods are invoked synchronously from the run goroutine, so no
// extra locking is required when recording state.
type MockHooks struct {
	mock.Mock
}

// OnParserStart mocks the OnParserStart method.
func (m *MockHooks) OnParserStart(source, name string) error {
	args := m.Called(source, name)
	return args.Error(0)
}

// OnParserComplete mocks the OnParserComplete method.
func (m *MockHooks) OnParserComplete(source, name string, duration time.Duration, err error) error {
	args := m.Called(source, name, duration, err)
	return args.Error(0)
}

// OnRunComplete mocks the OnRunComplete method.
func (m *MockHooks) OnRunComplete(result *mwcp.Result) error {
	args := m.Called(result)
	return args.Error(0)
}
