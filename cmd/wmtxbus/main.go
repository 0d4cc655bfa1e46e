// Command wmtxbus is a reference bus-transfer loop: it drives an
// engine.Engine the way a real bus-specific driver backend would,
// against a fake transport that just logs what it would have sent.
// It plays the same "minimal end-to-end demo" role the teacher
// repo's main.go played for its message queue.
package main

import (
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amkvr/wmtx/affinity"
	"github.com/amkvr/wmtx/engine"
)

func main() {
	busBlockSize := flag.Uint("block-size", 256, "bus transfer block size")
	pinCPU := flag.Int("pin-cpu", -1, "CPU core to pin the bus loop to (-1 to disable)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	kicker := engine.NewChanKicker()
	eng, err := engine.NewEngine(uint32(*busBlockSize),
		engine.WithKicker(kicker),
		engine.WithLogger(log),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to start tx engine")
	}
	defer eng.Close()

	if *pinCPU >= 0 {
		if err := affinity.PinCurrentThread(*pinCPU); err != nil {
			log.WithError(err).Warn("failed to pin bus loop to cpu")
		} else {
			log.WithField("cpu", *pinCPU).Info("bus loop pinned")
		}
	}

	go producerDemo(eng, log)

	for {
		select {
		case <-kicker.Chan():
			drain(eng, log)
		case <-time.After(time.Second):
			drain(eng, log)
		}
	}
}

// drain ships every currently deliverable message to the fake
// transport, the way a real bus_tx_kick backend loops over
// i2400m_tx_msg_get until it returns nil.
func drain(eng *engine.Engine, log *logrus.Logger) {
	for {
		msg, ok := eng.TakeNext()
		if !ok {
			return
		}
		sendFake(msg, log)
		eng.MarkSent()
	}
}

func sendFake(msg *engine.TXMessage, log *logrus.Logger) {
	log.WithField("bytes", len(msg.Bytes())).Debug("sent tx message")
}

// producerDemo is a stand-in for an upper-layer packet source; it
// submits 64-byte data payloads without end, about one per
// millisecond, so the loop above has something to drain.
func producerDemo(eng *engine.Engine, log *logrus.Logger) {
	buf := make([]byte, 64)
	for i := 0; ; i++ {
		if err := eng.Submit(buf, engine.PayloadData); err != nil {
			log.WithError(err).Debug("submit failed, backing off")
			time.Sleep(10 * time.Millisecond)
			continue
		}
		time.Sleep(time.Millisecond)
	}
}
