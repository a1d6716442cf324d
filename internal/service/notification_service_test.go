package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"crolars/internal/model"
	"crolars/internal/realtime"
	"crolars/internal/repository"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationFixture struct {
	svc       *notificationService
	notifs    *fakeNotificationRepo
	prefs     *fakePreferenceRepo
	pusher    *fakePusher
	publisher *fakePublisher
}

func newNotificationFixture(withBroker bool) *notificationFixture {
	f := &notificationFixture{
		notifs: newFakeNotificationRepo(),
		prefs:  newFakePreferenceRepo(),
		pusher: &fakePusher{},
	}
	f.svc = &notificationService{notifRepo: f.notifs, prefRepo: f.prefs, pusher: f.pusher}
	if withBroker {
		f.publisher = &fakePublisher{}
		f.svc.publisher = f.publisher
	}
	return f
}

func TestDispatch_PushesDirectlyWithoutBroker(t *testing.T) {
	f := newNotificationFixture(false)

	n, err := f.svc.Dispatch("u1", model.NotificationTypeGamification, "+15 XP", "Ganaste 15 XP", map[string]interface{}{"xp": 15})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Read)

	require.Len(t, f.pusher.toUser, 1)
	assert.Equal(t, "u1", f.pusher.toUser[0].userID)
	assert.Equal(t, realtime.MessageTypeNotification, f.pusher.toUser[0].msgType)
}

func TestDispatch_PublishesToBroker(t *testing.T) {
	f := newNotificationFixture(true)

	n, err := f.svc.Dispatch("u1", model.NotificationTypeSocial, "Nuevo seguidor", "Ana te sigue", nil)
	require.NoError(t, err)

	require.Len(t, f.publisher.bodies, 1)
	msg := f.publisher.decoded(0)
	assert.Equal(t, "u1", msg.UserID)
	assert.Equal(t, n.ID, msg.Notification.ID)
	assert.Empty(t, f.pusher.toUser)
}

func TestDispatch_FallsBackWhenPublishFails(t *testing.T) {
	f := newNotificationFixture(true)
	f.publisher.err = errors.New("channel closed")

	_, err := f.svc.Dispatch("u1", model.NotificationTypeAcademic, "Nueva tarea", "Entrega el viernes", nil)
	require.NoError(t, err)
	assert.Len(t, f.pusher.toUser, 1)
}

func TestDispatch_RespectsPreferences(t *testing.T) {
	f := newNotificationFixture(false)
	pref := model.DefaultNotificationPreference("u1")
	pref.Gamification = false
	require.NoError(t, f.prefs.Upsert(pref))

	_, err := f.svc.Dispatch("u1", model.NotificationTypeGamification, "+10 XP", "", nil)
	require.NoError(t, err)
	assert.Empty(t, f.pusher.toUser)

	count, err := f.svc.UnreadCount("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = f.svc.Dispatch("u1", model.NotificationTypeSystem, "Mantenimiento", "", nil)
	require.NoError(t, err)
	assert.Len(t, f.pusher.toUser, 1)
}

func TestDispatch_RejectsUnknownType(t *testing.T) {
	f := newNotificationFixture(false)

	_, err := f.svc.Dispatch("u1", "PROMO", "x", "y", nil)
	assert.ErrorIs(t, err, ErrInvalidNotificationType)
	assert.Empty(t, f.notifs.items)
}

func TestMarkAsRead_ChecksOwnership(t *testing.T) {
	f := newNotificationFixture(false)
	n, err := f.svc.Dispatch("owner", model.NotificationTypeSocial, "Hola", "", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.MarkAsRead(n.ID, "intruder"), ErrNotificationForbidden)
	assert.ErrorIs(t, f.svc.MarkAsRead("missing", "owner"), repository.ErrNotificationNotFound)

	require.NoError(t, f.svc.MarkAsRead(n.ID, "owner"))
	require.NoError(t, f.svc.MarkAsRead(n.ID, "owner"))

	stored, err := f.notifs.FindByID(n.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)
	assert.NotNil(t, stored.ReadAt)
}

func TestMarkAllAsRead_Idempotent(t *testing.T) {
	f := newNotificationFixture(false)
	for i := 0; i < 2; i++ {
		_, err := f.svc.Dispatch("u1", model.NotificationTypeSocial, "Hola", "", nil)
		require.NoError(t, err)
	}

	changed, err := f.svc.MarkAllAsRead("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	changed, err = f.svc.MarkAllAsRead("u1")
	require.NoError(t, err)
	assert.Zero(t, changed)

	count, err := f.svc.UnreadCount("u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDelete_ChecksOwnership(t *testing.T) {
	f := newNotificationFixture(false)
	n, err := f.svc.Dispatch("owner", model.NotificationTypeMarketplace, "Venta", "", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(n.ID, "intruder"), ErrNotificationForbidden)
	require.NoError(t, f.svc.Delete(n.ID, "owner"))

	list, err := f.svc.List("owner", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdatePreferences_Partial(t *testing.T) {
	f := newNotificationFixture(false)
	off := false

	pref, err := f.svc.UpdatePreferences("u1", PreferenceUpdate{Marketplace: &off})
	require.NoError(t, err)
	assert.False(t, pref.Marketplace)
	assert.True(t, pref.Social)
	assert.True(t, pref.Push)

	stored, err := f.svc.GetPreferences("u1")
	require.NoError(t, err)
	assert.False(t, stored.Marketplace)
	assert.True(t, stored.Email)
}

func TestAnnounceAndFeedUpdate(t *testing.T) {
	f := newNotificationFixture(false)

	f.svc.Announce("Mantenimiento", "El sábado a las 22:00")
	f.svc.SignalFeedUpdate("")
	f.svc.SignalFeedUpdate("u1")

	require.Len(t, f.pusher.toAll, 2)
	assert.Equal(t, realtime.MessageTypeSystemAnnouncement, f.pusher.toAll[0].msgType)
	assert.Equal(t, map[string]string{"title": "Mantenimiento", "message": "El sábado a las 22:00"}, f.pusher.toAll[0].data)
	assert.Equal(t, realtime.MessageTypeFeedUpdate, f.pusher.toAll[1].msgType)

	require.Len(t, f.pusher.toUser, 1)
	assert.Equal(t, realtime.MessageTypeFeedUpdate, f.pusher.toUser[0].msgType)
}

func TestNotificationWorker_Process(t *testing.T) {
	pusher := &fakePusher{}
	worker := NewNotificationWorker(nil, pusher)

	require.NoError(t, worker.process([]byte(`{"user_id":"u1","notification":{"id":"n1","userId":"u1","type":"SYSTEM","title":"Hola"}}`)))
	require.Len(t, pusher.toUser, 1)
	assert.Equal(t, "u1", pusher.toUser[0].userID)
	delivered, ok := pusher.toUser[0].data.(*model.Notification)
	require.True(t, ok)
	assert.Equal(t, "n1", delivered.ID)

	assert.ErrorIs(t, worker.process([]byte(`not json`)), errMalformedMessage)
	assert.ErrorIs(t, worker.process([]byte(`{"notification":{}}`)), errMalformedMessage)
}

func TestNotificationWorker_StartWithoutBroker(t *testing.T) {
	worker := NewNotificationWorker(nil, &fakePusher{})
	assert.NoError(t, worker.Start())
	worker.Stop()
}

func notificationDelivery(acker amqp.Acknowledger, tag uint64, userID string) amqp.Delivery {
	body := fmt.Sprintf(`{"user_id":%q,"notification":{"id":"n%d","userId":%q,"type":"SYSTEM","title":"Hola"}}`, userID, tag, userID)
	return amqp.Delivery{Acknowledger: acker, DeliveryTag: tag, Body: []byte(body)}
}

func TestNotificationWorker_ResubscribesAfterChannelClose(t *testing.T) {
	source := &fakeDeliverySource{}
	pusher := &fakePusher{}
	acker := &fakeAcknowledger{}
	worker := &NotificationWorker{
		source:           source,
		pusher:           pusher,
		resubscribeDelay: 10 * time.Millisecond,
		stopChan:         make(chan bool),
		stopped:          make(chan struct{}),
	}
	require.NoError(t, worker.Start())
	defer worker.Stop()

	first := source.channel(0)
	require.NotNil(t, first)
	first <- notificationDelivery(acker, 1, "u1")
	require.Eventually(t, func() bool { return len(pusher.userMessages()) == 1 }, time.Second, 5*time.Millisecond)

	// broker drops the channel
	close(first)
	require.Eventually(t, func() bool { return source.consumeCount() == 2 }, time.Second, 5*time.Millisecond)

	source.channel(1) <- notificationDelivery(acker, 2, "u2")
	require.Eventually(t, func() bool { return len(pusher.userMessages()) == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, "u2", pusher.userMessages()[1].userID)
	assert.Equal(t, []uint64{1, 2}, acker.ackedTags())
	assert.Equal(t, 2, source.declares)
}

func TestNotificationWorker_StopWhileResubscribing(t *testing.T) {
	source := &fakeDeliverySource{}
	worker := &NotificationWorker{
		source:           source,
		pusher:           &fakePusher{},
		resubscribeDelay: 10 * time.Millisecond,
		stopChan:         make(chan bool),
		stopped:          make(chan struct{}),
	}
	require.NoError(t, worker.Start())

	source.mu.Lock()
	source.consumeErr = errors.New("connection refused")
	source.mu.Unlock()
	close(source.channel(0))

	time.Sleep(30 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop while resubscribing")
	}
	assert.Equal(t, 1, source.consumeCount())
}
