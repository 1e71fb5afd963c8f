package conversation

import (
	"errors"
	"testing"

	"github.com/ajramos/convview/internal/layout"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testMetrics = layout.Metrics{ViewportWidth: 100, ViewportHeight: 50, CharWidth: 10, LineHeight: 20}

// MockHost implements Host for testing
type MockHost struct {
	mock.Mock
	tops    [][]string
	bottoms [][]string
}

func (m *MockHost) OnGeometryChange(tops, bottoms []string) {
	m.Called(tops, bottoms)
	m.tops = append(m.tops, tops)
	m.bottoms = append(m.bottoms, bottoms)
}

func (m *MockHost) OnContentReady() {
	m.Called()
}

func (m *MockHost) FetchTempMessageBodies() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockHost) FetchMessageBody(domID string) string {
	args := m.Called(domID)
	return args.String(0)
}

func (m *MockHost) FetchScrollPercent() float64 {
	args := m.Called()
	return args.Get(0).(float64)
}

func (m *MockHost) reports() int { return len(m.tops) }

func (m *MockHost) lastReport() ([]string, []string) {
	if len(m.tops) == 0 {
		return nil, nil
	}
	return m.tops[len(m.tops)-1], m.bottoms[len(m.bottoms)-1]
}

func newMockHost(scrollPercent float64) *MockHost {
	h := &MockHost{}
	h.On("OnGeometryChange", mock.Anything, mock.Anything).Return()
	h.On("OnContentReady").Return()
	h.On("FetchScrollPercent").Return(scrollPercent)
	return h
}

// queueDispatcher holds posted work until the test drains it
type queueDispatcher struct {
	tasks  []func()
	closed bool
}

func (q *queueDispatcher) Post(fn func()) bool {
	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, fn)
	return true
}

func (q *queueDispatcher) runAll() {
	for len(q.tasks) > 0 {
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		fn()
	}
}

var errEmptyData = errors.New("empty data uri")

// fakeLoader succeeds immediately for every source except the bare placeholder
type fakeLoader struct {
	requested []string
}

func (f *fakeLoader) Load(src string, done func(width, height int, err error)) {
	f.requested = append(f.requested, src)
	if src == "data:" {
		done(0, 0, errEmptyData)
		return
	}
	done(120, 40, nil)
}

type fixture struct {
	view   *View
	host   *MockHost
	disp   *queueDispatcher
	loader *fakeLoader
}

func load(t *testing.T, page string, host *MockHost, policy Policy) *fixture {
	t.Helper()
	f := &fixture{host: host, disp: &queueDispatcher{}, loader: &fakeLoader{}}
	f.view = New(host, Options{
		Metrics:    testMetrics,
		Policy:     policy,
		Dispatcher: f.disp,
		Loader:     f.loader,
	})
	require.NoError(t, f.view.Load(page))
	return f
}

const conversationPage = `<html><head><meta id="meta-viewport" content="width=device-width" data-zoom-on="user-scalable=yes" data-zoom-off="user-scalable=no"></head><body>
<div id="conversation-header" style="height: 30px"></div>
<div id="msg1" class="mail-message expanded">
<div class="mail-message-header" style="height: 10px"></div>
<div class="mail-message-content collapsible" style="display: block">hello<div class="elided-text">first quote<img src="http://example.com/q.png"></div></div>
<div class="mail-message-footer" style="height: 5px"></div>
</div>
<div id="msg2" class="mail-message">
<div class="mail-message-header" style="height: 10px"></div>
<div class="mail-message-content collapsible" style="display: none"><table width="400" style="height: 40px"></table><img src="http://example.com/wide.png"></div>
<div class="mail-message-footer collapsible" style="display: none; height: 5px"></div>
</div>
<div class="mail-super-collapsed-block" index="3" style="height: 20px"></div>
<div id="msg5" class="mail-message expanded">
<div class="mail-message-header" style="height: 10px"></div>
<div class="mail-message-content mail-show-images collapsible" style="display: block">bye<div class="elided-text">second quote</div><div class="elided-text">third quote</div><img src="cid:logo"></div>
</div>
</body></html>`
