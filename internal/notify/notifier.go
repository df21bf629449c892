package notify

import (
	"sync"

	"go.uber.org/zap"
)

type OrderItemLine struct {
	ProductName string
	Quantity    int64
	UnitPrice   int64
}

// 販売者単位にまとめた注文通知（1販売者=1通）
type SellerOrderNotification struct {
	SellerEmail     string
	OrderID         int64
	BuyerName       string
	BuyerEmail      string
	Phone           string
	ShippingAddress string
	Items           []OrderItemLine
	Subtotal        int64
}

type GoalReachedNotification struct {
	SellerEmail   string
	ProductID     int64
	ProductName   string
	GoalAmount    int64
	CurrentAmount int64
	Supporters    int64
}

// メール送信の約束。失敗は呼び出し側に波及させない。
type Mailer interface {
	SendOrderNotification(n SellerOrderNotification) error
	SendFundingGoalReached(n GoalReachedNotification) error
}

// 送信内容をログに書くだけのMailer（SMTP接続は運用側の差し替え）
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendOrderNotification(n SellerOrderNotification) error {
	m.log.Info("order notification email",
		zap.String("seller", n.SellerEmail),
		zap.Int64("order_id", n.OrderID),
		zap.Int("items", len(n.Items)),
		zap.Int64("subtotal", n.Subtotal),
	)
	return nil
}

func (m *LogMailer) SendFundingGoalReached(n GoalReachedNotification) error {
	m.log.Info("funding goal reached email",
		zap.String("seller", n.SellerEmail),
		zap.Int64("product_id", n.ProductID),
		zap.Int64("current", n.CurrentAmount),
		zap.Int64("goal", n.GoalAmount),
	)
	return nil
}

// fire-and-forgetディスパッチャ。リクエストは送信完了を待たない。
type Dispatcher struct {
	mailer Mailer
	log    *zap.Logger
	queue  chan func()
	wg     sync.WaitGroup
	once   sync.Once
}

func NewDispatcher(mailer Mailer, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		mailer: mailer,
		log:    log,
		queue:  make(chan func(), 256),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for job := range d.queue {
		job()
	}
}

func (d *Dispatcher) OrderPlaced(ns []SellerOrderNotification) {
	for _, n := range ns {
		n := n
		d.enqueue(func() {
			if err := d.mailer.SendOrderNotification(n); err != nil {
				d.log.Warn("order notification failed",
					zap.String("seller", n.SellerEmail),
					zap.Int64("order_id", n.OrderID),
					zap.Error(err),
				)
			}
		})
	}
}

func (d *Dispatcher) FundingGoalReached(n GoalReachedNotification) {
	d.enqueue(func() {
		if err := d.mailer.SendFundingGoalReached(n); err != nil {
			d.log.Warn("goal reached notification failed",
				zap.Int64("product_id", n.ProductID),
				zap.Error(err),
			)
		}
	})
}

// キューが詰まっていても呼び出し側はブロックさせない
func (d *Dispatcher) enqueue(job func()) {
	select {
	case d.queue <- job:
	default:
		d.log.Warn("notification queue full, dropping")
	}
}

// 残りを送り切ってから閉じる
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}
