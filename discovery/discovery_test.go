package discovery

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
)

func exerciseRegistry(t *testing.T, reg Registry, service string) {
	t.Helper()
	ctx := context.Background()

	inst1 := Instance{Addr: "127.0.0.1:8001", Path: "/rpc", Version: "1.0"}
	inst2 := Instance{Addr: "127.0.0.1:8002", Path: "/rpc", Version: "1.0"}

	if err := reg.Register(ctx, service, inst1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, service, inst2, 10); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover(ctx, service)
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}

	if err := reg.Deregister(ctx, service, inst1.Addr); err != nil {
		t.Fatal(err)
	}

	instances, err = reg.Discover(ctx, service)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Instance{inst2}, instances); diff != "" {
		t.Fatalf("instances after deregister (-want +got):\n%s", diff)
	}

	if err := reg.Deregister(ctx, service, inst2.Addr); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryRegisterAndDiscover(t *testing.T) {
	exerciseRegistry(t, NewMemoryRegistry(), "wsrpc")
}

func TestMemoryRegisterReplacesSameAddr(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()
	reg.Register(ctx, "wsrpc", Instance{Addr: "a", Version: "1"}, 10)
	reg.Register(ctx, "wsrpc", Instance{Addr: "a", Version: "2"}, 10)

	got, _ := reg.Discover(ctx, "wsrpc")
	if diff := cmp.Diff([]Instance{{Addr: "a", Version: "2"}}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestMemoryWatch(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	ch := reg.Watch(ctx, "wsrpc")

	reg.Register(context.Background(), "wsrpc", Instance{Addr: "a"}, 10)
	select {
	case got := <-ch:
		if len(got) != 1 || got[0].Addr != "a" {
			t.Fatalf("unexpected update: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no update after register")
	}

	cancel()
	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}

// WSRPC_TEST_ETCD=localhost:2379 go test ./discovery
func TestEtcdRegisterAndDiscover(t *testing.T) {
	endpoints := os.Getenv("WSRPC_TEST_ETCD")
	if endpoints == "" {
		t.Skip("WSRPC_TEST_ETCD not set")
	}
	reg, err := NewEtcdRegistry(strings.Split(endpoints, ","), 2*time.Second, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	exerciseRegistry(t, reg, "wsrpc-test")
}
