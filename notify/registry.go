// Package notify は管理者からの通知の保存と、WebSocketでのリアルタイム配信を扱う。
package notify

import (
	"sync"
	"time"

	"gymserver/metrics"
	"gymserver/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// CloseSuperseded は同じ受信者の新しい接続に置き換えられた古い接続に送るクローズコード
	CloseSuperseded = 4000

	writeWait      = 10 * time.Second
	broadcastLimit = 16
)

// Connection は *websocket.Conn のうちレジストリが使う部分
type Connection interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client は1つの受信者の生きている接続。書き込みは mu で直列化する。
type Client struct {
	RecipientID uuid.UUID
	Role        string

	conn Connection
	mu   sync.Mutex
}

// WriteJSON は他の書き込み(Pingを含む)と競合しないように送信する
func (c *Client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Ping はキープアライブ用のPingを送る
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *Client) closeWith(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// 相手が既に切れていてもCloseは必ず呼ぶ
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// Registry は受信者IDごとに最大1つの接続を保持する。単一プロセス内でのみ有効。
type Registry struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client

	metrics metrics.Recorder
	logger  *zap.Logger
}

func NewRegistry(recorder metrics.Recorder, logger *zap.Logger) *Registry {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Registry{
		clients: make(map[uuid.UUID]*Client),
		metrics: recorder,
		logger:  logger,
	}
}

// Register は接続を登録する。既存の接続があれば置き換えて閉じる。
func (r *Registry) Register(recipientID uuid.UUID, role string, conn Connection) *Client {
	client := &Client{RecipientID: recipientID, Role: role, conn: conn}

	// 差し替えはロック内で一度に行い、古い接続のCloseはロックの外で返る前に済ませる。
	// 遅いCloseでレジストリ全体を止めないため。
	r.mu.Lock()
	old := r.clients[recipientID]
	r.clients[recipientID] = client
	count := len(r.clients)
	r.mu.Unlock()

	if old != nil {
		r.logger.Info("Superseding existing connection", zap.String("recipientID", recipientID.String()))
		old.closeWith(CloseSuperseded, "superseded")
	}
	r.metrics.ConnectionsChanged(count)
	r.logger.Info("Client registered",
		zap.String("recipientID", recipientID.String()),
		zap.String("role", role),
		zap.Int("connections", count),
	)
	return client
}

// Unregister は登録を削除する。存在しなくてもよい。
func (r *Registry) Unregister(recipientID uuid.UUID) {
	r.mu.Lock()
	_, ok := r.clients[recipientID]
	delete(r.clients, recipientID)
	count := len(r.clients)
	r.mu.Unlock()

	if ok {
		r.metrics.ConnectionsChanged(count)
		r.logger.Info("Client removed", zap.String("recipientID", recipientID.String()))
	}
}

// Release は client がまだ現在の登録である場合だけ削除する。
// 置き換えられた古い接続の切断処理が新しい接続を消さないようにするため。
func (r *Registry) Release(client *Client) bool {
	r.mu.Lock()
	current, ok := r.clients[client.RecipientID]
	released := ok && current == client
	if released {
		delete(r.clients, client.RecipientID)
	}
	count := len(r.clients)
	r.mu.Unlock()

	if released {
		r.metrics.ConnectionsChanged(count)
		r.logger.Info("Client removed", zap.String("recipientID", client.RecipientID.String()))
	}
	return released
}

// Count は現在の登録数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) lookup(recipientID uuid.UUID) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[recipientID]
}

// SendTo は1人の受信者に送る。未接続なら何もしない。送れたかどうかを返す。
func (r *Registry) SendTo(recipientID uuid.UUID, payload interface{}) bool {
	client := r.lookup(recipientID)
	if client == nil {
		return false
	}
	return r.deliver(client, payload)
}

// Broadcast はロールクラスに属する全接続に送る。1つの失敗は他に影響しない。
// 送信に成功した接続数を返す。
func (r *Registry) Broadcast(roleClass string, payload interface{}) int {
	roles := rolesFor(roleClass)
	if len(roles) == 0 {
		return 0
	}

	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		if roles[client.Role] {
			targets = append(targets, client)
		}
	}
	r.mu.RUnlock()

	var (
		g         errgroup.Group
		mu        sync.Mutex
		delivered int
	)
	g.SetLimit(broadcastLimit)
	for _, client := range targets {
		client := client
		g.Go(func() error {
			if r.deliver(client, payload) {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return delivered
}

// CloseAll はシャットダウン時に全接続を閉じる
func (r *Registry) CloseAll() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[uuid.UUID]*Client)
	r.mu.Unlock()

	for _, client := range clients {
		client.closeWith(websocket.CloseGoingAway, "server shutdown")
	}
	r.metrics.ConnectionsChanged(0)
}

// deliver の失敗はログだけ残す。登録の削除は接続側の切断処理に任せる。
func (r *Registry) deliver(client *Client, payload interface{}) bool {
	if err := client.WriteJSON(payload); err != nil {
		r.logger.Warn("Failed to push notification",
			zap.String("recipientID", client.RecipientID.String()),
			zap.Error(err),
		)
		r.metrics.PushDelivered(false)
		return false
	}
	r.metrics.PushDelivered(true)
	return true
}

// rolesFor はブロードキャストのロールクラスを接続ロールの集合に展開する
func rolesFor(roleClass string) map[string]bool {
	switch roleClass {
	case models.RecipientAll:
		return map[string]bool{models.RoleMember: true, models.RoleTrainer: true, models.RoleAdmin: true}
	case models.RecipientAllMembers:
		return map[string]bool{models.RoleMember: true}
	case models.RecipientAllTrainers:
		return map[string]bool{models.RoleTrainer: true}
	case models.RecipientAllAdmins:
		return map[string]bool{models.RoleAdmin: true}
	}
	return nil
}
