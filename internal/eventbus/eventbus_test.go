package eventbus

import (
	"os"
	"testing"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"
)

func tempFile() string {
	f, err := os.CreateTemp("", "gofer-test-")
	if err != nil {
		panic(err)
	}
	if err := f.Close(); err != nil {
		panic(err)
	}
	if err := os.Remove(f.Name()); err != nil {
		panic(err)
	}
	return f.Name()
}

func newTestBus(t *testing.T, retention time.Duration) *EventBus {
	t.Helper()

	path := tempFile()
	db, err := storage.New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(path) })

	eb, err := New(db, retention, time.Minute*5)
	if err != nil {
		t.Fatal(err)
	}

	return eb
}

func TestTryPublish(t *testing.T) {
	eb := newTestBus(t, time.Minute*5)

	event, err := eb.TryPublish(models.EventCreatedNamespace{
		NamespaceID: "test_namespace",
	})
	if err != nil {
		t.Fatal(err)
	}

	storedEvent, err := eb.Get(event.ID)
	if err != nil {
		t.Fatal(err)
	}

	if storedEvent.ID != event.ID {
		t.Errorf("published event id and stored event id do not match; published %s; stored %s",
			event.ID, storedEvent.ID)
	}
}

func TestPublishIsEventuallyDurable(t *testing.T) {
	eb := newTestBus(t, time.Minute*5)

	event := eb.Publish(models.EventCreatedNamespace{
		NamespaceID: "test_namespace",
	})

	// The durable write happens on a detached writer, so poll for it.
	deadline := time.Now().Add(time.Second * 5)
	for {
		_, err := eb.Get(event.ID)
		if err == nil {
			return
		}

		if time.Now().After(deadline) {
			t.Fatalf("event %s never became durable: %v", event.ID, err)
		}

		time.Sleep(time.Millisecond * 10)
	}
}

func TestSubscribeLive(t *testing.T) {
	eb := newTestBus(t, time.Minute*5)

	listener := eb.SubscribeLive(models.EventKindCreatedNamespace)
	defer eb.Unsubscribe(listener)

	_, err := eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace_1"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace_2"})
	if err != nil {
		t.Fatal(err)
	}
	thirdEvent, err := eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace_3"})
	if err != nil {
		t.Fatal(err)
	}

	<-listener.Events
	<-listener.Events
	three := <-listener.Events
	if three.ID != thirdEvent.ID {
		t.Errorf("published event id and received event id do not match; published %s; received %s",
			thirdEvent.ID, three.ID)
	}
}

func TestSubscribeLiveFiltersKinds(t *testing.T) {
	eb := newTestBus(t, time.Minute*5)

	listener := eb.SubscribeLive(models.EventKindDeletedNamespace)
	defer eb.Unsubscribe(listener)

	_, err := eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace"})
	if err != nil {
		t.Fatal(err)
	}
	deleted, err := eb.TryPublish(models.EventDeletedNamespace{NamespaceID: "test_namespace"})
	if err != nil {
		t.Fatal(err)
	}

	received := <-listener.Events
	if received.ID != deleted.ID {
		t.Errorf("listener received an event of a kind it never subscribed to: %s", received.Kind)
	}
}

func TestSubscribeLiveAnyReceivesEverything(t *testing.T) {
	eb := newTestBus(t, time.Minute*5)

	listener := eb.SubscribeLive()
	defer eb.Unsubscribe(listener)

	_, err := eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = eb.TryPublish(models.EventDeletedNamespace{NamespaceID: "test_namespace"})
	if err != nil {
		t.Fatal(err)
	}

	first := <-listener.Events
	second := <-listener.Events

	if first.Kind != models.EventKindCreatedNamespace || second.Kind != models.EventKindDeletedNamespace {
		t.Errorf("any-kind listener received events out of order or missed kinds: %s, %s",
			first.Kind, second.Kind)
	}
}

func TestSubscribeLiveDropsOldestWhenFull(t *testing.T) {
	eb := newTestBus(t, time.Minute*5)

	listener := eb.SubscribeLive(models.EventKindCreatedNamespace)
	defer eb.Unsubscribe(listener)

	overflow := 5
	published := []string{}
	for i := 0; i < listenerBufferSize+overflow; i++ {
		event, err := eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace"})
		if err != nil {
			t.Fatal(err)
		}
		published = append(published, event.ID)
	}

	// The oldest events should have been evicted to make room for the newest.
	first := <-listener.Events
	if first.ID != published[overflow] {
		t.Errorf("expected first buffered event to be %s after overflow; got %s",
			published[overflow], first.ID)
	}

	count := 1
	for {
		select {
		case <-listener.Events:
			count++
		default:
			if count != listenerBufferSize {
				t.Errorf("expected exactly %d buffered events; got %d", listenerBufferSize, count)
			}
			return
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	eb := newTestBus(t, time.Minute*5)

	listener := eb.SubscribeLive(models.EventKindCreatedNamespace)
	eb.Unsubscribe(listener)

	if len(eb.listeners) != 0 {
		t.Errorf("Unsubscribe not successful: %+v", eb.listeners)
	}
}

func TestSubscribeHistorical(t *testing.T) {
	eb := newTestBus(t, time.Minute*5)

	published := []string{}
	for i := 0; i < 5; i++ {
		event, err := eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace"})
		if err != nil {
			t.Fatal(err)
		}
		published = append(published, event.ID)
	}

	count := 0
	for event := range eb.SubscribeHistorical("") {
		if event.ID != published[count] {
			t.Errorf("historical event out of order; expected %s; got %s", published[count], event.ID)
		}
		count++
	}

	if count != len(published) {
		t.Errorf("expected %d historical events; got %d", len(published), count)
	}

	// Starting from an id replays only events emitted after it.
	count = 3
	for event := range eb.SubscribeHistorical(published[2]) {
		if event.ID != published[count] {
			t.Errorf("historical event out of order; expected %s; got %s", published[count], event.ID)
		}
		count++
	}

	if count != len(published) {
		t.Errorf("expected replay to end at %d events; got %d", len(published), count)
	}
}

func TestSubscribeHistoricalPaginates(t *testing.T) {
	eb := newTestBus(t, time.Minute*5)

	total := historicalPageSize*2 + 7
	published := []string{}
	for i := 0; i < total; i++ {
		event, err := eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace"})
		if err != nil {
			t.Fatal(err)
		}
		published = append(published, event.ID)
	}

	count := 0
	for event := range eb.SubscribeHistorical("") {
		if event.ID != published[count] {
			t.Errorf("historical event out of order; expected %s; got %s", published[count], event.ID)
		}
		count++
	}

	if count != total {
		t.Errorf("expected %d historical events; got %d", total, count)
	}
}

func TestGetAllReverse(t *testing.T) {
	eb := newTestBus(t, time.Minute*5)

	published := []string{}
	for i := 0; i < 5; i++ {
		event, err := eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace"})
		if err != nil {
			t.Fatal(err)
		}
		published = append(published, event.ID)
	}

	events := eb.GetAll(true)

	count := len(published) - 1
	for event := range events {
		if event.ID != published[count] {
			t.Errorf("reversed event out of order; expected %s; got %s", published[count], event.ID)
		}
		count--
	}
}

func TestPruneEvents(t *testing.T) {
	eb := newTestBus(t, time.Millisecond*1)

	first, err := eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace_1"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace_2"})
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(time.Millisecond * 10)

	eb.pruneEvents()

	fourth, err := eb.TryPublish(models.EventCreatedNamespace{NamespaceID: "test_namespace_4"})
	if err != nil {
		t.Fatal(err)
	}

	storedEvent, err := eb.Get(fourth.ID)
	if err != nil {
		t.Fatal(err)
	}

	if storedEvent.ID != fourth.ID {
		t.Errorf("published event id and stored event id do not match; published %s; stored %s",
			fourth.ID, storedEvent.ID)
	}

	_, err = eb.Get(first.ID)
	if err != ErrEventNotFound {
		t.Errorf("first event exists, when it should have been pruned; id %s", first.ID)
	}
}
