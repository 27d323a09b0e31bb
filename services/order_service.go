package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/bunzstudio/storefront-backend/models"
	"github.com/bunzstudio/storefront-backend/pkg/aws"
	"github.com/bunzstudio/storefront-backend/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// OrderPlacedHandler consumes the event emitted once per materialized
// order. Handlers run off the webhook request path and must not fail it.
type OrderPlacedHandler interface {
	HandleOrderPlaced(ctx context.Context, evt models.OrderPlacedEvent)
}

// MaterializeResult reports what a webhook delivery did. Replayed means the
// order already existed and no side effects were repeated.
// StockInconsistencies names lines whose decrement hit the floor or failed;
// the order stands regardless, these are for operators.
type MaterializeResult struct {
	Order                *models.Order
	Replayed             bool
	DroppedLines         int
	StockInconsistencies []string
}

// OrderService materializes paid checkouts into orders and serves order
// lookups. Materialization is idempotent per checkout session: the unique
// session index arbitrates concurrent duplicate deliveries.
type OrderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	users    repository.UserRepository
	notifier OrderPlacedHandler
	sns      aws.SNSPublisher
	snsTopic string
	cache    *OrderCache
	logger   *zap.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		users:    users,
		logger:   logger,
	}
}

// WithNotifier attaches the order-placed consumer, invoked asynchronously
// after materialization.
func (s *OrderService) WithNotifier(n OrderPlacedHandler) *OrderService {
	s.notifier = n
	return s
}

// WithSNS attaches the best-effort downstream fan-out.
func (s *OrderService) WithSNS(publisher aws.SNSPublisher, topicARN string) *OrderService {
	s.sns = publisher
	s.snsTopic = topicARN
	return s
}

// WithCache attaches the optional order-by-session read cache.
func (s *OrderService) WithCache(cache *OrderCache) *OrderService {
	s.cache = cache
	return s
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

type reconciledLine struct {
	item        models.OrderItem
	name        string
	amountTotal int64 // charged for the whole line, minor units
}

// MaterializeOrder turns a verified paid-checkout event into a persisted
// order with inventory decremented, exactly once per session no matter how
// many times the delivery arrives or in what interleaving.
func (s *OrderService) MaterializeOrder(ctx context.Context, event *models.CheckoutEvent) (*MaterializeResult, *ServiceError) {
	log := s.logger.With(
		zap.String("session_id", event.SessionID),
		zap.String("order_ref", event.OrderRef),
	)

	// Fast path for retried deliveries. Races between concurrent deliveries
	// that both miss here are settled by the insert below.
	if existing, err := s.orders.FindBySessionID(ctx, event.SessionID); err == nil {
		log.Info("order already materialized, acknowledging replay",
			zap.String("order_id", existing.ID.Hex()))
		return &MaterializeResult{Order: existing, Replayed: true}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Error("order lookup failed", zap.Error(err))
		return nil, NewServiceError(http.StatusInternalServerError, "order lookup failed")
	}

	lines, dropped, svcErr := s.reconcileLines(ctx, event, log)
	if svcErr != nil {
		return nil, svcErr
	}

	// The order total sums the charged amounts of the lines that survived
	// reconciliation; dropped lines contribute nothing.
	var totalCents int64
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, line.item)
		totalCents += line.amountTotal
	}
	totalAmount := roundMoney(float64(totalCents) / 100)

	if len(items) == 0 {
		log.Warn("no resolvable line items, rejecting delivery",
			zap.Int("dropped", dropped))
		return nil, NewServiceError(http.StatusBadRequest, "no resolvable line items")
	}
	if totalAmount <= 0 {
		log.Warn("non-positive order total, rejecting delivery",
			zap.Float64("total", totalAmount))
		return nil, NewServiceError(http.StatusBadRequest, "order total must be positive")
	}

	order := &models.Order{
		Items:         items,
		PaymentMethod: event.PaymentMethod,
		TotalAmount:   totalAmount,
		DatePlaced:    time.Now().UTC(),
		Status:        models.OrderStatusPaid,
		Metadata: models.OrderMetadata{
			SessionID: event.SessionID,
			OrderRef:  event.OrderRef,
		},
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = "Card"
	}
	if event.Shipping != nil {
		order.ShippingAddress = *event.Shipping
	} else if event.Billing != nil {
		order.ShippingAddress = *event.Billing
	}

	// Buyer resolution is best-effort: an order from an unknown or
	// unreachable buyer record is still an order.
	if event.BuyerEmail != "" {
		user, err := s.users.FindByEmail(ctx, event.BuyerEmail)
		switch {
		case err == nil:
			order.UserID = &user.ID
		case errors.Is(err, repository.ErrNotFound):
			log.Info("buyer has no account, recording order unlinked",
				zap.String("email", event.BuyerEmail))
		default:
			log.Warn("buyer lookup failed, recording order unlinked", zap.Error(err))
		}
	} else {
		log.Warn("checkout carried no buyer email")
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			// A concurrent delivery won the insert. Its side effects stand;
			// this delivery becomes a replay.
			log.Info("concurrent delivery already materialized this session")
			existing, ferr := s.orders.FindBySessionID(ctx, event.SessionID)
			if ferr != nil {
				log.Error("winning order fetch failed after duplicate", zap.Error(ferr))
				return &MaterializeResult{Replayed: true}, nil
			}
			return &MaterializeResult{Order: existing, Replayed: true}, nil
		}
		log.Error("order insert failed", zap.Error(err))
		return nil, NewServiceError(http.StatusInternalServerError, "order persistence failed")
	}

	inconsistencies := s.decrementStock(ctx, order, lines, log)

	placed := s.buildOrderPlacedEvent(order, lines, event)
	go s.dispatchOrderPlaced(placed)

	log.Info("order materialized",
		zap.String("order_id", order.ID.Hex()),
		zap.Float64("total_amount", order.TotalAmount),
		zap.Int("lines", len(items)),
		zap.Int("dropped_lines", dropped))

	return &MaterializeResult{
		Order:                order,
		DroppedLines:         dropped,
		StockInconsistencies: inconsistencies,
	}, nil
}

// reconcileLines maps processor line items back onto catalog products.
// Unmatchable or malformed lines are dropped with a loud log; only
// infrastructure failures abort.
func (s *OrderService) reconcileLines(ctx context.Context, event *models.CheckoutEvent, log *zap.Logger) ([]reconciledLine, int, *ServiceError) {
	var lines []reconciledLine
	dropped := 0

	for _, li := range event.LineItems {
		if li.Description == "" || li.Quantity <= 0 || li.AmountTotal <= 0 {
			dropped++
			log.Warn("dropping malformed line item",
				zap.String("description", li.Description),
				zap.Int64("quantity", li.Quantity),
				zap.Int64("amount_total", li.AmountTotal))
			continue
		}

		product, err := s.products.FindByName(ctx, li.Description)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				dropped++
				log.Warn("line item matches no catalog product, dropping",
					zap.String("description", li.Description))
				continue
			}
			log.Error("product lookup failed", zap.Error(err))
			return nil, dropped, NewServiceError(http.StatusInternalServerError, "product lookup failed")
		}

		// Unit price comes from what was actually charged, never the current
		// catalog price.
		unitPrice := roundMoney(float64(li.AmountTotal) / 100 / float64(li.Quantity))
		lines = append(lines, reconciledLine{
			item: models.OrderItem{
				ProductID: product.ID,
				Quantity:  li.Quantity,
				UnitPrice: unitPrice,
			},
			name:        product.Name,
			amountTotal: li.AmountTotal,
		})
	}
	return lines, dropped, nil
}

// decrementStock applies the bounded decrement per line. Failures here do
// not unwind the order; the lines were charged and stand as sold, so each
// inconsistency is logged and reported instead of swallowed.
func (s *OrderService) decrementStock(ctx context.Context, order *models.Order, lines []reconciledLine, log *zap.Logger) []string {
	var inconsistencies []string
	for _, line := range lines {
		before, err := s.products.DecrementStock(ctx, line.item.ProductID, line.item.Quantity)
		if err != nil {
			log.Error("stock decrement failed, inventory now inconsistent with order",
				zap.String("order_id", order.ID.Hex()),
				zap.String("product_id", line.item.ProductID.Hex()),
				zap.Int64("qty", line.item.Quantity),
				zap.Error(err))
			inconsistencies = append(inconsistencies,
				fmt.Sprintf("%s: decrement failed: %v", line.name, err))
			continue
		}
		if before < line.item.Quantity {
			log.Warn("order sold more units than were in stock",
				zap.String("order_id", order.ID.Hex()),
				zap.String("product_id", line.item.ProductID.Hex()),
				zap.Int64("stock_before", before),
				zap.Int64("qty", line.item.Quantity))
			inconsistencies = append(inconsistencies,
				fmt.Sprintf("%s: sold %d with %d in stock", line.name, line.item.Quantity, before))
		}
	}
	return inconsistencies
}

func (s *OrderService) buildOrderPlacedEvent(order *models.Order, lines []reconciledLine, event *models.CheckoutEvent) models.OrderPlacedEvent {
	placed := models.OrderPlacedEvent{
		Type:        models.EventTypeOrderPlaced,
		OrderID:     order.ID.Hex(),
		OrderRef:    order.Metadata.OrderRef,
		SessionID:   order.Metadata.SessionID,
		BuyerEmail:  event.BuyerEmail,
		BuyerName:   event.BuyerName,
		TotalAmount: order.TotalAmount,
		Shipping:    event.Shipping,
		PlacedAt:    order.DatePlaced,
	}
	for _, line := range lines {
		placed.Items = append(placed.Items, models.PlacedItem{
			Name:     line.name,
			Quantity: line.item.Quantity,
			Price:    line.item.UnitPrice,
		})
	}
	return placed
}

// dispatchOrderPlaced runs the post-materialization consumers off the
// request path. Neither consumer can fail the already-committed order.
func (s *OrderService) dispatchOrderPlaced(placed models.OrderPlacedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.notifier != nil {
		s.notifier.HandleOrderPlaced(ctx, placed)
	}

	if s.sns != nil && s.snsTopic != "" {
		payload, err := json.Marshal(placed)
		if err != nil {
			s.logger.Error("order placed event marshal failed", zap.Error(err))
			return
		}
		if err := s.sns.Publish(ctx, s.snsTopic, payload); err != nil {
			s.logger.Warn("order placed fan-out failed",
				zap.String("order_id", placed.OrderID),
				zap.Error(err))
		}
	}
}

// GetOrderBySession serves the storefront's payment-success page. Display
// fields are resolved from the catalog; a since-deleted product degrades to
// the bare stored line.
func (s *OrderService) GetOrderBySession(ctx context.Context, sessionID string) (*models.OrderView, *ServiceError) {
	if sessionID == "" {
		return nil, NewServiceError(http.StatusBadRequest, "session id is required")
	}

	if s.cache != nil {
		if view, ok := s.cache.GetOrderBySession(ctx, sessionID); ok {
			return view, nil
		}
	}

	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(http.StatusNotFound, "no order for this session")
		}
		s.logger.Error("order lookup failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, NewServiceError(http.StatusInternalServerError, "order lookup failed")
	}

	view := s.resolveView(ctx, order)
	if s.cache != nil {
		s.cache.SetOrderBySessionAsync(sessionID, view)
	}
	return view, nil
}

func (s *OrderService) resolveView(ctx context.Context, order *models.Order) *models.OrderView {
	view := &models.OrderView{Order: *order}
	for _, item := range order.Items {
		iv := models.OrderItemView{OrderItem: item}
		if product, err := s.products.FindByID(ctx, item.ProductID); err == nil {
			iv.Name = product.Name
			iv.Image = product.Image
		} else {
			s.logger.Warn("order line product no longer resolvable",
				zap.String("product_id", item.ProductID.Hex()),
				zap.Error(err))
		}
		view.ItemViews = append(view.ItemViews, iv)
	}
	return view
}

// OrderHistory is the paginated order-history response for one buyer.
type OrderHistory struct {
	Orders []models.OrderView     `json:"orders"`
	Stats  *models.UserOrderStats `json:"stats"`
	Meta   HistoryMeta            `json:"meta"`
}

type HistoryMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// GetUserOrders returns a buyer's order history, newest first, with
// aggregate spend stats.
func (s *OrderService) GetUserOrders(ctx context.Context, email, status string, page, limit int) (*OrderHistory, *ServiceError) {
	if status != "" && !isValidStatus(status) {
		return nil, NewServiceError(http.StatusBadRequest, "invalid status filter")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(http.StatusNotFound, "user not found")
		}
		s.logger.Error("user lookup failed", zap.String("email", email), zap.Error(err))
		return nil, NewServiceError(http.StatusInternalServerError, "user lookup failed")
	}

	orders, total, err := s.orders.FindByUser(ctx, user.ID, status, page, limit)
	if err != nil {
		s.logger.Error("order history query failed", zap.Error(err))
		return nil, NewServiceError(http.StatusInternalServerError, "order history query failed")
	}

	stats, err := s.orders.UserStats(ctx, user.ID)
	if err != nil {
		s.logger.Warn("order stats aggregation failed", zap.Error(err))
		stats = &models.UserOrderStats{}
	}

	history := &OrderHistory{
		Stats: stats,
		Meta: HistoryMeta{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
		},
	}
	for i := range orders {
		history.Orders = append(history.Orders, *s.resolveView(ctx, &orders[i]))
	}
	return history, nil
}

// UpdateOrderStatus moves an order through the fulfillment workflow.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, idHex, status string) (*models.Order, *ServiceError) {
	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return nil, NewServiceError(http.StatusBadRequest, "invalid order id")
	}
	if !isValidStatus(status) {
		return nil, NewServiceError(http.StatusBadRequest, "invalid order status")
	}

	order, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(http.StatusNotFound, "order not found")
		}
		s.logger.Error("order status update failed",
			zap.String("order_id", idHex),
			zap.Error(err))
		return nil, NewServiceError(http.StatusInternalServerError, "order status update failed")
	}

	if s.cache != nil && order.Metadata.SessionID != "" {
		s.cache.InvalidateSession(ctx, order.Metadata.SessionID)
	}

	s.logger.Info("order status updated",
		zap.String("order_id", idHex),
		zap.String("status", status))
	return order, nil
}

func isValidStatus(status string) bool {
	for _, s := range models.ValidOrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}
