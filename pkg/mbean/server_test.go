package mbean_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/objectname"
)

func TestRegisterQueryGet(t *testing.T) {
	srv := mbean.NewMemoryServer()
	defer srv.Close()

	cache := objectname.MustParse("app:type=Cache")
	pool := objectname.MustParse("app:type=Pool,name=db")
	require.NoError(t, srv.Register(cache, mbean.NewStaticBean().Set("Hits", int64(3)).Set("Name", "users")))
	require.NoError(t, srv.Register(pool, mbean.NewStaticBean().Set("Active", 2)))

	err := srv.Register(cache, mbean.NewStaticBean())
	assert.ErrorIs(t, err, mbean.ErrInstanceAlreadyExists)
	assert.ErrorIs(t, srv.Register(objectname.MustParse("app:*"), mbean.NewStaticBean()), mbean.ErrPatternName)

	names, err := srv.QueryNames(objectname.MustParse("app:type=Cache,*"))
	require.NoError(t, err)
	assert.Equal(t, []objectname.Name{cache}, names)

	all, err := srv.QueryNames(objectname.Name{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	infos, err := srv.Attributes(cache)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "Hits", infos[0].Name)
	assert.Equal(t, "int64", infos[0].Type)
	assert.Equal(t, cache, infos[0].Owner)

	v, err := srv.GetAttribute(cache, "Hits")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = srv.GetAttribute(cache, "Missing")
	assert.ErrorIs(t, err, mbean.ErrAttributeNotFound)
	_, err = srv.GetAttribute(objectname.MustParse("app:type=Gone"), "Hits")
	assert.ErrorIs(t, err, mbean.ErrInstanceNotFound)
}

func TestUnreadableAndFuncBean(t *testing.T) {
	srv := mbean.NewMemoryServer()
	defer srv.Close()

	boom := errors.New("boom")
	name := objectname.MustParse("app:type=Func")
	bean := mbean.NewFuncBean(
		mbean.Func("Ok", "int", func() (any, error) { return 1, nil }),
		mbean.Func("Fail", "int", func() (any, error) { return nil, boom }),
		mbean.FuncAttribute{Info: mbean.AttributeInfo{Name: "Secret", Type: "string"}},
	)
	require.NoError(t, srv.Register(name, bean))

	v, err := srv.GetAttribute(name, "Ok")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = srv.GetAttribute(name, "Fail")
	assert.ErrorIs(t, err, boom)

	_, err = srv.GetAttribute(name, "Secret")
	assert.ErrorIs(t, err, mbean.ErrAttributeNotReadable)
}

func TestNotificationsOrdered(t *testing.T) {
	srv := mbean.NewMemoryServer()
	defer srv.Close()

	var mu sync.Mutex
	var got []mbean.Notification
	unsubscribe, err := srv.Subscribe(func(n mbean.Notification) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})
	require.NoError(t, err)

	name := objectname.MustParse("app:type=Churn")
	for i := 0; i < 50; i++ {
		require.NoError(t, srv.Register(name, mbean.NewStaticBean()))
		require.NoError(t, srv.Unregister(name))
	}
	srv.Drain()

	mu.Lock()
	require.Len(t, got, 100)
	for i, n := range got {
		want := mbean.Registered
		if i%2 == 1 {
			want = mbean.Unregistered
		}
		assert.Equal(t, want, n.Type)
		assert.Equal(t, uint64(i+1), n.Sequence)
	}
	mu.Unlock()

	unsubscribe()
	unsubscribe()
	require.NoError(t, srv.Register(name, mbean.NewStaticBean()))
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	assert.Len(t, got, 100)
	mu.Unlock()
}

func TestHandlerMayCallServer(t *testing.T) {
	srv := mbean.NewMemoryServer()
	defer srv.Close()

	seen := make(chan []mbean.AttributeInfo, 1)
	_, err := srv.Subscribe(func(n mbean.Notification) {
		infos, _ := srv.Attributes(n.Name)
		seen <- infos
	})
	require.NoError(t, err)

	require.NoError(t, srv.Register(objectname.MustParse("app:type=Cache"), mbean.NewStaticBean().Set("Hits", 1)))
	select {
	case infos := <-seen:
		require.Len(t, infos, 1)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestClose(t *testing.T) {
	srv := mbean.NewMemoryServer()
	_, err := srv.Subscribe(func(mbean.Notification) {})
	require.NoError(t, err)
	srv.Close()
	srv.Close()

	_, err = srv.Subscribe(func(mbean.Notification) {})
	assert.ErrorIs(t, err, mbean.ErrServerClosed)
	assert.ErrorIs(t, srv.Register(objectname.MustParse("app:type=X"), mbean.NewStaticBean()), mbean.ErrServerClosed)
}

func TestComposite(t *testing.T) {
	c := mbean.NewComposite("Usage", map[string]any{"b": 2, "a": 1})
	assert.Equal(t, []string{"a", "b"}, c.Keys())
	assert.Equal(t, 2, c.Get("b"))
	assert.Nil(t, c.Get("z"))
	assert.Equal(t, "Usage", c.TypeName())
	assert.Equal(t, "composite", mbean.TypeOf(c))
	assert.Equal(t, "null", mbean.TypeOf(nil))
}
