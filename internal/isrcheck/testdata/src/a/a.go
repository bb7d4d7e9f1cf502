package a

import (
	"fmt"
	"log/slog"
	"time"
)

type Counter struct {
	n  int
	ch chan int
}

// Tick counts.
//
//tasker:isr
func (c *Counter) Tick() { // want Tick:"isr"
	c.n++
	c.bump()
}

//tasker:isr
func (c *Counter) bump() { // want bump:"isr"
	c.n++
}

//tasker:isr
func Bad(c *Counter, xs []int) { // want Bad:"isr"
	fmt.Println("tick")          // want `call to fmt.Println in interrupt handler`
	slog.Info("tick")            // want `call to log/slog.Info in interrupt handler`
	_ = make([]int, 4)           // want `allocation with make in interrupt handler`
	_ = new(int)                 // want `allocation with new in interrupt handler`
	xs = append(xs, 1)           // want `allocation with append in interrupt handler`
	go c.Tick()                  // want `go statement in interrupt handler`
	c.ch <- 1                    // want `channel send in interrupt handler`
	<-c.ch                       // want `channel receive in interrupt handler`
	time.Sleep(time.Millisecond) // want `blocking call to time.Sleep in interrupt handler`
	select {}                    // want `select statement in interrupt handler`
}

// Install is allowed to take the handler as a value.
func Install(c *Counter) func() {
	fmt.Println("installing", c.n)
	return c.Tick
}

func Direct(c *Counter) {
	c.Tick() // want `direct call to interrupt handler Tick`
	fn := Install(c)
	fn()
}
