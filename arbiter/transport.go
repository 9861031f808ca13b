package arbiter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/localfirst/eventcore/ids"
)

// subject builds the per-store request/reply subject the owner listens
// on; scoping by store_id keeps stores sharing one NATS connection from
// seeing each other's traffic.
func subject(storeID string) string { return "eventcore.owner." + storeID }

func notifySubject(storeID string) string { return "eventcore.owner." + storeID + ".notify" }

// ClientTransport is a client endpoint's connection to a shared-owner
// NATS server: it performs Hello once, then sends Requests and receives
// their Responses via NATS request/reply, and subscribes to Notify
// broadcasts.
type ClientTransport struct {
	nc      *nats.Conn
	storeID string
	timeout time.Duration
}

// NewClientInstanceID mints a sortable identifier suitable as a Hello's
// ClientInstanceID when a caller has no natural identity of its own to
// reuse across process restarts.
func NewClientInstanceID() string {
	return ids.NewSortableID().String()
}

// DialClient connects to url for storeID's owner subjects; it does not
// send Hello, which the caller performs with the Hello method. An empty
// name mints one via NewClientInstanceID.
func DialClient(url, storeID string, name string) (*ClientTransport, error) {
	if name == "" {
		name = NewClientInstanceID()
	}
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("arbiter: connect to %s: %w", url, err)
	}
	return &ClientTransport{nc: nc, storeID: storeID, timeout: 5 * time.Second}, nil
}

// Hello performs the handshake RPC and returns the owner's reply.
func (c *ClientTransport) Hello(h Hello) (*HelloOk, *HelloError, error) {
	payload, err := json.Marshal(h)
	if err != nil {
		return nil, nil, err
	}
	msg, err := c.nc.Request(subject(c.storeID)+".hello", payload, c.timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("arbiter: hello request: %w", err)
	}

	var envelope struct {
		Ok  *HelloOk    `json:"ok"`
		Err *HelloError `json:"err"`
	}
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return nil, nil, fmt.Errorf("arbiter: decode hello reply: %w", err)
	}
	return envelope.Ok, envelope.Err, nil
}

// Request sends req and blocks for its Response. Individual requests
// have no implicit timeout beyond what the caller supplies in timeout;
// once the connection is established, callers apply their own deadline.
func (c *ClientTransport) Request(req Request, timeout time.Duration) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	msg, err := c.nc.Request(subject(c.storeID)+".request", payload, timeout)
	if err != nil {
		return Response{}, fmt.Errorf("arbiter: request %s: %w", req.RequestID, err)
	}
	var resp Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return Response{}, fmt.Errorf("arbiter: decode response %s: %w", req.RequestID, err)
	}
	return resp, nil
}

// SendCancel publishes a Cancel; delivery is fire-and-forget (cancellation
// is advisory, never acknowledged individually).
func (c *ClientTransport) SendCancel(cancel Cancel) error {
	payload, err := json.Marshal(cancel)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject(c.storeID)+".cancel", payload)
}

// SubscribeNotify subscribes to TablesChanged broadcasts for this store,
// returning an unsubscribe function.
func (c *ClientTransport) SubscribeNotify(handle func(Notify)) (func() error, error) {
	sub, err := c.nc.Subscribe(notifySubject(c.storeID), func(msg *nats.Msg) {
		var n Notify
		if err := json.Unmarshal(msg.Data, &n); err == nil {
			handle(n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("arbiter: subscribe notify: %w", err)
	}
	return sub.Unsubscribe, nil
}

// Close closes the underlying NATS connection.
func (c *ClientTransport) Close() { c.nc.Close() }

// ServerTransport binds an Owner to NATS subjects scoped by storeID,
// realizing the shared-owner ownership mode over the network.
type ServerTransport struct {
	nc      *nats.Conn
	owner   *Owner
	storeID string
	subs    []*nats.Subscription
}

// ListenServer connects to url and wires subject handlers that dispatch
// into owner.
func ListenServer(url, storeID string, owner *Owner) (*ServerTransport, error) {
	nc, err := nats.Connect(url, nats.Name("eventcore-owner-"+storeID))
	if err != nil {
		return nil, fmt.Errorf("arbiter: connect to %s: %w", url, err)
	}
	st := &ServerTransport{nc: nc, owner: owner, storeID: storeID}

	helloSub, err := nc.Subscribe(subject(storeID)+".hello", st.handleHello)
	if err != nil {
		nc.Close()
		return nil, err
	}
	reqSub, err := nc.Subscribe(subject(storeID)+".request", st.handleRequest)
	if err != nil {
		nc.Close()
		return nil, err
	}
	cancelSub, err := nc.Subscribe(subject(storeID)+".cancel", st.handleCancel)
	if err != nil {
		nc.Close()
		return nil, err
	}

	st.subs = []*nats.Subscription{helloSub, reqSub, cancelSub}
	return st, nil
}

func (st *ServerTransport) handleHello(msg *nats.Msg) {
	var h Hello
	if err := json.Unmarshal(msg.Data, &h); err != nil {
		return
	}
	ok, helloErr := st.owner.HandleHello(h)
	envelope := struct {
		Ok  *HelloOk    `json:"ok"`
		Err *HelloError `json:"err"`
	}{Ok: ok, Err: helloErr}
	payload, _ := json.Marshal(envelope)
	msg.Respond(payload)
}

func (st *ServerTransport) handleRequest(msg *nats.Msg) {
	var req Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return
	}
	resp := st.owner.HandleRequest(req)
	payload, _ := json.Marshal(resp)
	msg.Respond(payload)
}

func (st *ServerTransport) handleCancel(msg *nats.Msg) {
	var c Cancel
	if err := json.Unmarshal(msg.Data, &c); err == nil {
		st.owner.Cancel(c.TargetRequestID)
	}
}

// PublishNotify broadcasts n to every subscriber of this store.
func (st *ServerTransport) PublishNotify(n Notify) error {
	n.V = ProtocolVersion
	n.Kind = NotifyTablesChanged
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return st.nc.Publish(notifySubject(st.storeID), payload)
}

// Close unsubscribes and closes the NATS connection.
func (st *ServerTransport) Close() {
	for _, sub := range st.subs {
		sub.Unsubscribe()
	}
	st.nc.Close()
}
