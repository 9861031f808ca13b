package arbiter_test

import (
	"testing"
	"time"

	"github.com/localfirst/eventcore/arbiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSTransportHelloAndRequestRoundTrip(t *testing.T) {
	srv, err := arbiter.StartEmbeddedServer()
	require.NoError(t, err)
	defer srv.Shutdown()

	owner := arbiter.NewOwner("server-1", arbiter.ModeSharedOwner, func(req arbiter.Request) ([]byte, error) {
		return []byte(`{"echo":true}`), nil
	})
	server, err := arbiter.ListenServer(srv.URL(), "store-1", owner)
	require.NoError(t, err)
	defer server.Close()

	client, err := arbiter.DialClient(srv.URL(), "store-1", "test-client")
	require.NoError(t, err)
	defer client.Close()

	ok, helloErr, err := client.Hello(arbiter.Hello{V: 1, StoreID: "store-1", ClientInstanceID: "client-1", DBName: "main"})
	require.NoError(t, err)
	require.Nil(t, helloErr)
	require.NotNil(t, ok)
	assert.Equal(t, arbiter.ModeSharedOwner, ok.OwnershipMode)

	resp, err := client.Request(arbiter.Request{V: 1, RequestID: "req-1"}, time.Second)
	require.NoError(t, err)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"echo":true}`, string(resp.Data))
}

func TestNATSTransportNotifyBroadcast(t *testing.T) {
	srv, err := arbiter.StartEmbeddedServer()
	require.NoError(t, err)
	defer srv.Shutdown()

	owner := arbiter.NewOwner("server-1", arbiter.ModeSharedOwner, func(req arbiter.Request) ([]byte, error) {
		return []byte(`{}`), nil
	})
	server, err := arbiter.ListenServer(srv.URL(), "store-1", owner)
	require.NoError(t, err)
	defer server.Close()

	client, err := arbiter.DialClient(srv.URL(), "store-1", "test-client")
	require.NoError(t, err)
	defer client.Close()

	received := make(chan arbiter.Notify, 1)
	unsubscribe, err := client.SubscribeNotify(func(n arbiter.Notify) { received <- n })
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, server.PublishNotify(arbiter.Notify{Tables: []string{"EVENTS"}}))

	select {
	case n := <-received:
		assert.Equal(t, arbiter.NotifyTablesChanged, n.Kind)
		assert.Contains(t, n.Tables, "EVENTS")
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive notify broadcast")
	}
}
