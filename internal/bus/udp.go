package bus

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const udpQueueDepth = 256

// UDPTransport carries one encoded frame per datagram between two hosts.
type UDPTransport struct {
	conn   *net.UDPConn
	mu     sync.RWMutex
	peer   *net.UDPAddr
	filter Filter
	queue  chan Frame
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

var _ Transport = (*UDPTransport)(nil)

// ListenUDP binds local and sends to peer. Received frames that fail the
// filter or do not decode are dropped.
func ListenUDP(local, peer string, filter Filter) (*UDPTransport, error) {
	laddr, err := net.ResolveUDPAddr("udp", local)
	if err != nil {
		return nil, fmt.Errorf("bus: resolve local %q: %w", local, err)
	}
	raddr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		return nil, fmt.Errorf("bus: resolve peer %q: %w", peer, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("bus: listen %q: %w", local, err)
	}
	t := &UDPTransport{
		conn:   conn,
		peer:   raddr,
		filter: filter,
		queue:  make(chan Frame, udpQueueDepth),
		done:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.readLoop()
	return t, nil
}

func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// SetPeer redirects outgoing frames.
func (t *UDPTransport) SetPeer(peer string) error {
	raddr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		return fmt.Errorf("bus: resolve peer %q: %w", peer, err)
	}
	t.mu.Lock()
	t.peer = raddr
	t.mu.Unlock()
	return nil
}

func (t *UDPTransport) Send(f Frame, timeout time.Duration) error {
	buf, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	if timeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	t.mu.RLock()
	peer := t.peer
	t.mu.RUnlock()
	if _, err := t.conn.WriteToUDP(buf, peer); err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return ErrTransportTimeout
		}
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (t *UDPTransport) TryReceive() (Frame, bool) {
	select {
	case f := <-t.queue:
		return f, true
	default:
		return Frame{}, false
	}
}

func (t *UDPTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		err = t.conn.Close()
		t.wg.Wait()
	})
	return err
}

func (t *UDPTransport) readLoop() {
	defer t.wg.Done()
	buf := make([]byte, 64)
	for {
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn().Err(err).Msg("bus: udp read failed")
			continue
		}
		f, err := DecodeFrame(buf[:n])
		if err != nil {
			log.Debug().Err(err).Int("bytes", n).Msg("bus: dropped malformed datagram")
			continue
		}
		if !t.filter.Accepts(f.ID) {
			continue
		}
		select {
		case t.queue <- f:
		case <-t.done:
			return
		}
	}
}
