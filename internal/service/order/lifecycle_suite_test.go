package order_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/service/outbox"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(msg domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// OrderLifecycleSuite проходит полный путь заказа: создание, события в outbox,
// публикация relay, удаление и возврат остатков.
type OrderLifecycleSuite struct {
	suite.Suite
	f         *fixture
	publisher *recordingPublisher
	relay     *outbox.Worker
}

func (s *OrderLifecycleSuite) SetupTest() {
	s.f = newFixture(s.T(), nil)
	s.f.addProduct(s.T(), "P1", "1999.00", 5)
	s.f.addProduct(s.T(), "P2", "49.99", 10)

	s.publisher = &recordingPublisher{}
	s.relay = outbox.NewWorker(s.f.store.Outbox(), s.publisher, outbox.WithLogger(quietLogger()))
}

func (s *OrderLifecycleSuite) TestCreatePublishDelete() {
	ctx := context.Background()

	created, err := s.f.service.CreateOrder(ctx, customerID, lines("P2", 2, "P1", 1))
	s.Require().NoError(err)
	s.Equal("2098.98", created.TotalAmount.StringFixed(2))
	s.Equal(int32(4), s.f.stock(s.T(), "P1"))
	s.Equal(int32(8), s.f.stock(s.T(), "P2"))

	s.Equal(1, s.relay.ProcessOnce(ctx))
	s.Equal([]string{domain.EventOrderCreated}, s.publisher.types())

	var event domain.OrderEvent
	s.Require().NoError(json.Unmarshal(s.publisher.events[0].Payload, &event))
	s.Equal(created.ID, event.OrderID)
	s.Equal("2098.98", event.TotalAmount)
	s.Len(event.Items, 2)

	status, err := s.f.service.GetOrderStatus(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusPending, status)

	_, err = s.f.service.DeleteOrder(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(int32(5), s.f.stock(s.T(), "P1"))
	s.Equal(int32(10), s.f.stock(s.T(), "P2"))

	s.Equal(1, s.relay.ProcessOnce(ctx))
	s.Equal([]string{domain.EventOrderCreated, domain.EventOrderDeleted}, s.publisher.types())
	s.Zero(s.f.pendingOutbox(s.T()))

	timeline, err := s.f.service.OrderTimeline(ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Len(timeline, 2)
	s.Equal(domain.TimelineOrderCreated, timeline[0].Type)
	s.Equal(domain.TimelineOrderDeleted, timeline[1].Type)

	_, err = s.f.service.GetOrder(ctx, created.ID)
	s.ErrorIs(err, domain.ErrOrderNotFound)
}

func (s *OrderLifecycleSuite) TestRejectedOrderPublishesNothing() {
	ctx := context.Background()

	_, err := s.f.service.CreateOrder(ctx, customerID, lines("P1", 1, "P2", 11))
	var insufficient *domain.InsufficientStockError
	s.Require().ErrorAs(err, &insufficient)
	s.Equal("P2", insufficient.ProductID)

	s.Equal(int32(5), s.f.stock(s.T(), "P1"))
	s.Equal(int32(10), s.f.stock(s.T(), "P2"))
	s.Zero(s.relay.ProcessOnce(ctx))
	s.Empty(s.publisher.types())
	s.Zero(s.f.orderCount(s.T()))
}

func (s *OrderLifecycleSuite) TestCustomerOrdersAcrossLifecycle() {
	ctx := context.Background()

	first, err := s.f.service.CreateOrder(ctx, customerID, lines("P1", 1))
	s.Require().NoError(err)
	_, err = s.f.service.CreateOrder(ctx, customerID, lines("P2", 3))
	s.Require().NoError(err)

	orders, err := s.f.service.ListOrdersForCustomer(ctx, customerID)
	s.Require().NoError(err)
	s.Len(orders, 2)

	_, err = s.f.service.DeleteOrder(ctx, first.ID)
	s.Require().NoError(err)

	orders, err = s.f.service.ListOrdersForCustomer(ctx, customerID)
	s.Require().NoError(err)
	s.Len(orders, 1)
	s.Equal(3, s.relay.ProcessOnce(ctx), "two creations and one deletion are relayed")
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleSuite))
}
