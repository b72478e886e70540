package blockchain

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/Soar-Robotics/SoarchainFaucet/internal/blockchain/types"
	"github.com/gorilla/websocket"
)

const newBlockQuery = "tm.event='NewBlock'"

// BlockClock follows NewBlock events from a node and reports the latest
// block time. Time never moves backwards: an older header is ignored.
type BlockClock struct {
	URL string

	connMu sync.Mutex
	conn   *websocket.Conn

	mu        sync.RWMutex
	height    int64
	blockTime time.Time
	chainID   string
}

func NewBlockClock(url string) (*BlockClock, error) {
	bc := &BlockClock{URL: url}
	if err := bc.Connect(); err != nil {
		return nil, err
	}
	return bc, nil
}

func (bc *BlockClock) Connect() error {
	log.Printf("Connecting to WebSocket URL: %s", bc.URL)
	conn, _, err := websocket.DefaultDialer.Dial(bc.URL, nil)
	if err != nil {
		log.Printf("Failed to connect to WebSocket: %v", err)
		return err
	}
	log.Println("Successfully connected to WebSocket")

	subscribeMsg := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "subscribe",
		"id":      1,
		"params":  map[string]string{"query": newBlockQuery},
	}
	if err := conn.WriteJSON(subscribeMsg); err != nil {
		log.Printf("Failed to send subscription message: %v", err)
		conn.Close()
		return err
	}
	log.Println("Subscription message sent successfully")

	bc.connMu.Lock()
	bc.conn = conn
	bc.connMu.Unlock()
	return nil
}

// ReadBlocks consumes events until ctx is cancelled, reconnecting whenever
// the socket drops.
func (bc *BlockClock) ReadBlocks(ctx context.Context, logger *log.Logger) {
	go func() {
		<-ctx.Done()
		bc.close()
	}()
	defer bc.close()

	for {
		conn := bc.currentConn()
		if conn == nil {
			if !bc.handleReconnection(ctx, logger) {
				return
			}
			continue
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Printf("Error reading message: %v", err)
			if !bc.handleReconnection(ctx, logger) {
				return
			}
			continue
		}

		bc.processMessage(message, logger)
	}
}

func (bc *BlockClock) Now() (time.Time, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.height == 0 {
		return time.Time{}, ErrNoBlock
	}
	return bc.blockTime, nil
}

func (bc *BlockClock) Height() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.height
}

func (bc *BlockClock) ChainID() string {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.chainID
}

func (bc *BlockClock) handleReconnection(ctx context.Context, logger *log.Logger) bool {
	logger.Println("Attempting to reconnect...")
	bc.close()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(5 * time.Second):
		}
		if err := bc.Connect(); err != nil {
			logger.Printf("Reconnection failed: %v", err)
			continue
		}
		logger.Println("Reconnected successfully")
		return true
	}
}

func (bc *BlockClock) processMessage(message []byte, logger *log.Logger) {
	var msg types.RPCResponse
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Printf("Error parsing message: %v", err)
		return
	}
	if msg.Error != nil {
		logger.Printf("Node returned error %d: %s %s", msg.Error.Code, msg.Error.Message, msg.Error.Data)
		return
	}
	if msg.Result == nil || msg.Result.Data.Value.Block == nil {
		return
	}

	header := msg.Result.Data.Value.Block.Header
	height, err := strconv.ParseInt(header.Height, 10, 64)
	if err != nil || height <= 0 {
		logger.Printf("Error parsing block height %q: %v", header.Height, err)
		return
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if height <= bc.height || header.Time.Before(bc.blockTime) {
		return
	}
	bc.height = height
	bc.blockTime = header.Time.UTC()
	bc.chainID = header.ChainID
}

func (bc *BlockClock) currentConn() *websocket.Conn {
	bc.connMu.Lock()
	defer bc.connMu.Unlock()
	return bc.conn
}

func (bc *BlockClock) close() {
	bc.connMu.Lock()
	defer bc.connMu.Unlock()
	if bc.conn != nil {
		bc.conn.Close()
		bc.conn = nil
	}
}
