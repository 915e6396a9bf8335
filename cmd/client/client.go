// Command client is a minimal CLI exercising the wire protocol: place,
// cancel, and log-book actions plus an async report reader, adapted
// from the teacher's cmd/client/client.go to the 4-way order type,
// string symbols, and fixed-point ticks instead of float64 prices. It
// imports internal/wire for the message type constants, the same way
// the teacher's client imports internal/net.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"fenrir/internal/wire"
)

// reportFixedLen matches internal/wire.Report's fixed header layout:
// Type(1)+Side(1)+Timestamp(8)+Price(8)+Qty(8)+SymbolLen(2)+OrderIDLen(2)+
// CounterpartyLen(2)+ErrLen(4).
const reportFixedLen = 1 + 1 + 8 + 8 + 8 + 2 + 2 + 2 + 4

const (
	orderTypeLimit = iota
	orderTypeMarket
	orderTypeIOC
	orderTypeFOK
)

const (
	sideBuy = iota
	sideSell
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	owner := flag.String("owner", "", "Owner username (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'log']")

	symbol := flag.String("symbol", "AAPL", "Symbol to trade")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit', 'market', 'ioc', or 'fok'")
	priceTicks := flag.Int64("price", 10000, "Limit price in ticks")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	orderID := flag.String("id", "", "Order id to cancel")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s as %q\n", *serverAddr, *owner)

	go readReports(conn)

	side := sideBuy
	if strings.ToLower(*sideStr) == "sell" {
		side = sideSell
	}

	orderType := orderTypeLimit
	switch strings.ToLower(*typeStr) {
	case "market":
		orderType = orderTypeMarket
	case "ioc":
		orderType = orderTypeIOC
	case "fok":
		orderType = orderTypeFOK
	}

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			if err := sendPlaceOrder(conn, *owner, *symbol, orderType, side, *priceTicks, qty); err != nil {
				log.Printf("Failed to place order (qty %d): %v", qty, err)
			} else {
				fmt.Printf("-> Sent %s order: %s %d @ %d ticks\n", strings.ToUpper(*sideStr), *symbol, qty, *priceTicks)
			}
			time.Sleep(5 * time.Millisecond)
		}
	case "cancel":
		if *orderID == "" {
			log.Fatal("Error: -id is required for cancellation")
		}
		if err := sendCancelOrder(conn, *symbol, *orderID); err != nil {
			log.Printf("Failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> Sent cancel request for id %s\n", *orderID)
		}
	case "log":
		if err := sendLog(conn); err != nil {
			log.Printf("Failed to send log request: %v", err)
		} else {
			fmt.Println("-> Sent log request")
		}
	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func parseQuantities(input string) []uint64 {
	var result []uint64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("Warning: invalid quantity %q, skipping", p)
		}
	}
	return result
}

func sendPlaceOrder(conn net.Conn, owner, symbol string, orderType, side int, price int64, qty uint64) error {
	symbolLen := len(symbol)
	usernameLen := len(owner)
	bodyLen := 1 + 1 + 8 + 8 + 1 + 1 + symbolLen + usernameLen
	buf := make([]byte, 2+bodyLen)

	binary.BigEndian.PutUint16(buf[0:2], uint16(wire.NewOrder))
	buf[2] = byte(orderType)
	buf[3] = byte(side)
	binary.BigEndian.PutUint64(buf[4:12], uint64(price))
	binary.BigEndian.PutUint64(buf[12:20], qty)
	buf[20] = byte(symbolLen)
	buf[21] = byte(usernameLen)
	offset := 22
	offset += copy(buf[offset:], symbol)
	copy(buf[offset:], owner)

	_, err := conn.Write(buf)
	return err
}

func sendCancelOrder(conn net.Conn, symbol, orderID string) error {
	symbolLen := len(symbol)
	orderIDLen := len(orderID)
	bodyLen := 1 + 1 + symbolLen + orderIDLen
	buf := make([]byte, 2+bodyLen)

	binary.BigEndian.PutUint16(buf[0:2], uint16(wire.CancelOrder))
	buf[2] = byte(symbolLen)
	buf[3] = byte(orderIDLen)
	offset := 4
	offset += copy(buf[offset:], symbol)
	copy(buf[offset:], orderID)

	_, err := conn.Write(buf)
	return err
}

func sendLog(conn net.Conn) error {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(wire.LogBook))
	_, err := conn.Write(buf)
	return err
}

// readReports continuously reads and parses Report messages from the
// server, matching internal/wire.Report's fixed-then-variable layout.
func readReports(conn net.Conn) {
	for {
		header := make([]byte, reportFixedLen)
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}

		msgType := header[0]
		side := header[1]
		price := int64(binary.BigEndian.Uint64(header[10:18]))
		qty := binary.BigEndian.Uint64(header[18:26])
		symbolLen := binary.BigEndian.Uint16(header[26:28])
		orderIDLen := binary.BigEndian.Uint16(header[28:30])
		counterpartyLen := binary.BigEndian.Uint16(header[30:32])
		errLen := binary.BigEndian.Uint32(header[32:36])

		varLen := int(symbolLen) + int(orderIDLen) + int(counterpartyLen) + int(errLen)
		varBuf := make([]byte, varLen)
		if varLen > 0 {
			if _, err := io.ReadFull(conn, varBuf); err != nil {
				log.Printf("Error reading report body: %v", err)
				return
			}
		}

		offset := 0
		symbol := string(varBuf[offset : offset+int(symbolLen)])
		offset += int(symbolLen)
		orderID := string(varBuf[offset : offset+int(orderIDLen)])
		offset += int(orderIDLen)
		counterparty := string(varBuf[offset : offset+int(counterpartyLen)])
		offset += int(counterpartyLen)
		errStr := string(varBuf[offset : offset+int(errLen)])

		if wire.ReportMessageType(msgType) == wire.ErrorReport {
			fmt.Printf("\n[SERVER ERROR] %s\n", errStr)
			continue
		}

		sideStr := "BUY"
		if side == sideSell {
			sideStr = "SELL"
		}
		fmt.Printf("\n[EXECUTION] %s %s | qty: %d | price: %d ticks | vs: %s | order: %s\n",
			sideStr, symbol, qty, price, counterparty, orderID)
	}
}
