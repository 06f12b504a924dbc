package coordinator

import (
	"github.com/stretchr/testify/mock"

	"github.com/sirosfoundation/go-local-server/internal/domain"
)

type mockHandle struct {
	mock.Mock
}

func (m *mockHandle) Start() error {
	return m.Called().Error(0)
}

func (m *mockHandle) Stop() {
	m.Called()
}

func (m *mockHandle) IsRunning() bool {
	return m.Called().Bool(0)
}

func (m *mockHandle) CurrentConfig() *domain.ServerConfig {
	cfg, _ := m.Called().Get(0).(*domain.ServerConfig)
	return cfg
}

// newMockHandle returns a handle that reports running and cfg for every call
func newMockHandle(running bool, cfg *domain.ServerConfig) *mockHandle {
	h := &mockHandle{}
	h.On("IsRunning").Return(running).Maybe()
	h.On("CurrentConfig").Return(cfg).Maybe()
	h.On("Start").Return(nil).Maybe()
	h.On("Stop").Return().Maybe()
	return h
}

type mockView struct {
	mock.Mock
}

func (m *mockView) OnServerStarted(cfg *domain.ServerConfig) {
	m.Called(cfg)
}

func (m *mockView) OnServerStopped() {
	m.Called()
}

func (m *mockView) OnError(err domain.LifecycleError) {
	m.Called(err)
}

func (m *mockView) SubscribeToNetworkChanges() {
	m.Called()
}

func newMockView() *mockView {
	v := &mockView{}
	v.On("OnServerStarted", mock.Anything).Return().Maybe()
	v.On("OnServerStopped").Return().Maybe()
	v.On("OnError", mock.Anything).Return().Maybe()
	v.On("SubscribeToNetworkChanges").Return().Maybe()
	return v
}

// calls counts invocations of method, optionally matching the first argument
func calls(m *mock.Mock, method string, arg ...interface{}) int {
	n := 0
	for _, c := range m.Calls {
		if c.Method != method {
			continue
		}
		if len(arg) > 0 && !argEqual(c.Arguments, arg[0]) {
			continue
		}
		n++
	}
	return n
}

func argEqual(args mock.Arguments, want interface{}) bool {
	if len(args) == 0 {
		return false
	}
	switch w := want.(type) {
	case *domain.ServerConfig:
		got, _ := args.Get(0).(*domain.ServerConfig)
		return got.Equal(w)
	default:
		return args.Get(0) == want
	}
}
