package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/ajmal017/pyquant/internal/netproto"
	"github.com/google/uuid"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the backtest server")
	owner := flag.String("owner", "", "owner username (compulsory)")
	action := flag.String("action", "place", "action to perform: 'place', 'cancel', 'log'")

	symbol := flag.String("symbol", "", "instrument symbol (compulsory for place/cancel)")
	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "order type: 'limit' or 'market'")
	price := flag.Float64("price", 100.0, "limit price")
	qtyStr := flag.String("qty", "10", "quantity, or comma-separated list (e.g. 10,20,50)")

	clientOrderID := flag.String("id", "", "client order id to cancel")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as %q\n", *serverAddr, *owner)

	go readReports(conn)

	direction, offset := common.LONG, common.OPEN
	if strings.ToLower(*sideStr) == "sell" {
		direction, offset = common.SHORT, common.OPEN
	}
	orderType := common.LimitOrder
	if strings.ToLower(*typeStr) == "market" {
		orderType = common.MarketOrder
	}

	switch strings.ToLower(*action) {
	case "place":
		if *symbol == "" {
			log.Fatal("Error: -symbol is required to place an order")
		}
		for _, qty := range parseQuantities(*qtyStr) {
			id := uuid.New()
			msg := &netproto.NewOrderMessage{
				Symbol:        *symbol,
				Price:         common.NewPrice(*price),
				Volume:        qty,
				Direction:     direction,
				Offset:        offset,
				OrderType:     orderType,
				ClientOrderID: id,
				Owner:         *owner,
			}
			if _, err := conn.Write(msg.Serialize()); err != nil {
				log.Printf("failed to place order (qty %d): %v", qty, err)
				continue
			}
			fmt.Printf("-> sent %s %s %d @ %.2f (id %s)\n", strings.ToUpper(*sideStr), *symbol, qty, *price, id)
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		if *clientOrderID == "" {
			log.Fatal("Error: -id is required to cancel")
		}
		id, err := uuid.Parse(*clientOrderID)
		if err != nil {
			log.Fatalf("invalid -id: %v", err)
		}
		msg := &netproto.CancelOrderMessage{ClientOrderID: id}
		if _, err := conn.Write(msg.Serialize()); err != nil {
			log.Printf("failed to send cancel: %v", err)
		} else {
			fmt.Printf("-> sent cancel for %s\n", id)
		}

	case "log":
		if _, err := conn.Write(netproto.LogBookMessage()); err != nil {
			log.Printf("failed to send log request: %v", err)
		} else {
			fmt.Println("-> sent log request")
		}

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (ctrl-c to exit)")
	select {}
}

func parseQuantities(input string) []uint64 {
	var out []uint64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			log.Printf("warning: invalid quantity %q, skipping", p)
			continue
		}
		out = append(out, v)
	}
	return out
}

// readReports continuously reads and prints Report messages from the server.
func readReports(conn net.Conn) {
	for {
		report, err := netproto.ReadReport(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}
		if report.MessageType == netproto.ErrorReport {
			fmt.Printf("\n[SERVER ERROR] %s\n", report.Err)
			continue
		}
		side := "BUY"
		if report.Side == common.Sell {
			side = "SELL"
		}
		fmt.Printf("\n[EXECUTION] %s %s | qty %d | price %s | vs %s | id %s\n",
			side, report.Symbol, report.Quantity, report.Price, report.Counterparty, report.ClientOrderID)
	}
}
