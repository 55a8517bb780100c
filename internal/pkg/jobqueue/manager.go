package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Task is a periodic background job run by the manager on its own ticker.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Manager manages the job queue and periodic background tasks
type Manager struct {
	queue   *Queue
	tasks   []Task
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitManager builds the process-wide manager on first call. Later calls
// return the existing one and ignore their arguments.
func InitManager(queue *Queue, tasks ...Task) *Manager {
	managerOnce.Do(func() {
		globalManager = NewManager(queue, tasks...)
	})
	return globalManager
}

// GetManager returns the manager built by InitManager, or nil.
func GetManager() *Manager {
	return globalManager
}

func NewManager(queue *Queue, tasks ...Task) *Manager {
	return &Manager{
		queue:  queue,
		tasks:  tasks,
		stopCh: make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and one ticker goroutine per task.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	if m.queue != nil {
		m.queue.Start()
	}

	for _, task := range m.tasks {
		if task.Interval <= 0 || task.Run == nil {
			log.Warnf("[JobQueue Manager] Task %q disabled (interval=%s)", task.Name, task.Interval)
			continue
		}
		m.wg.Add(1)
		go m.taskWorker(ctx, task, m.stopCh)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")
	close(m.stopCh)
	m.cancel()
	m.running = false

	m.wg.Wait()

	if m.queue != nil {
		m.queue.Stop()
	}
	log.Info("[JobQueue Manager] Stopped successfully")
}

func (m *Manager) taskWorker(ctx context.Context, task Task, stopCh <-chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	log.Infof("[JobQueue Manager] Started %s worker (interval: %s)", task.Name, task.Interval)

	for {
		select {
		case <-stopCh:
			log.Infof("[JobQueue Manager] %s worker stopping", task.Name)
			return
		case <-ticker.C:
			if err := task.Run(ctx); err != nil {
				log.Errorf("[JobQueue Manager] %s error: %v", task.Name, err)
			}
		}
	}
}

// RunTask runs the named task once on the calling goroutine (admin use).
func (m *Manager) RunTask(ctx context.Context, name string) error {
	for _, task := range m.tasks {
		if task.Name == name {
			return task.Run(ctx)
		}
	}
	return fmt.Errorf("unknown task %q", name)
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
