package http

import (
	"net"
	"sync"
	"time"
)

// workerPool owns a fixed set of workers and the bounded handoff queue
// between the acceptor and them. Each worker keeps one RequestCtx for its
// lifetime and processes a connection fully (all keep-alive reuses included)
// before taking the next one.
type workerPool struct {
	srv   *Server
	conns chan net.Conn
	done  chan struct{}
	wg    sync.WaitGroup
}

func newWorkerPool(srv *Server) *workerPool {
	return &workerPool{
		srv:   srv,
		conns: make(chan net.Conn, srv.connQueueSize()),
		done:  make(chan struct{}),
	}
}

func (p *workerPool) start() {
	for i := 0; i < p.srv.workerCount(); i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *workerPool) worker() {
	defer p.wg.Done()

	ctx := newRequestCtx()
	for {
		select {
		case <-p.done:
			return
		case conn := <-p.conns:
			p.srv.serveConn(ctx, conn)
		}
	}
}

// dispatch hands a connection to the pool. It never blocks: a full queue
// means the server is overloaded and the caller must reject instead.
func (p *workerPool) dispatch(conn net.Conn) bool {
	select {
	case p.conns <- conn:
		return true
	default:
		return false
	}
}

// stop tells workers to finish their in-flight connection and exit, waits
// for them, then closes whatever was still queued.
func (p *workerPool) stop() {
	close(p.done)
	p.wg.Wait()
	for {
		select {
		case conn := <-p.conns:
			conn.Close()
		default:
			return
		}
	}
}

// rejectOverloaded answers a connection the pool cannot take with an
// immediate 503 and closes it.
func rejectOverloaded(conn net.Conn, timeout time.Duration) {
	conn.SetWriteDeadline(time.Now().Add(timeout))
	conn.Write(response503Overloaded)
	conn.Close()
}
