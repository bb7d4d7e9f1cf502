package b

import "a"

func Run(c *a.Counter) {
	c.Tick() // want `direct call to interrupt handler Tick`
	go func() {
		a.Bad(c, nil) // want `direct call to interrupt handler Bad`
	}()
}

//tasker:isr
func Handler(c *a.Counter) { // want Handler:"isr"
	c.Tick()
}
