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

	"github.com/axiomex/clobengine/internal/common"
	clobnet "github.com/axiomex/clobengine/internal/net"
	"github.com/google/uuid"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	owner := flag.String("owner", "", "Owner username (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'modify', 'log']")

	ticker := flag.String("ticker", "AAPL", "Ticker symbol (max 4 chars)")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit', 'market', 'ioc', or 'fok'")
	price := flag.Uint64("price", 100, "Limit price (ticks; ignored for market orders)")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	orderID := flag.String("id", "", "Order id (UUID) for cancel/modify")
	newPrice := flag.Uint64("new-price", 0, "New price for modify (0 = unchanged)")
	newQty := flag.Uint64("new-qty", 0, "New total quantity for modify (0 = unchanged)")

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
	fmt.Printf("Connected to %s as '%s'\n", *serverAddr, *owner)

	go readReports(conn)

	side := common.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = common.Sell
	}

	orderType, err := parseOrderType(*typeStr)
	if err != nil {
		log.Fatal(err)
	}

	switch strings.ToLower(*action) {
	case "place":
		quantities := parseQuantities(*qtyStr)
		for _, q := range quantities {
			if err := sendPlaceOrder(conn, *owner, orderType, *ticker, *price, q, side); err != nil {
				log.Printf("Failed to place order (Qty: %d): %v", q, err)
			} else {
				fmt.Printf("-> Sent %s %s Order: %s %d @ %d\n", orderType, strings.ToUpper(*sideStr), *ticker, q, *price)
			}
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		id := mustParseUUID(*orderID, "cancel")
		if err := sendCancelOrder(conn, id); err != nil {
			log.Printf("Failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> Sent Cancel Request for id: %s\n", id)
		}

	case "modify":
		id := mustParseUUID(*orderID, "modify")
		if err := sendModifyOrder(conn, id, *newPrice, *newQty); err != nil {
			log.Printf("Failed to send modify request: %v", err)
		} else {
			fmt.Printf("-> Sent Modify Request for id: %s\n", id)
		}

	case "log":
		if err := sendLog(conn); err != nil {
			log.Printf("Failed to send log request: %v", err)
		} else {
			fmt.Println("-> Sent Log Request")
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func parseOrderType(s string) (common.OrderType, error) {
	switch strings.ToLower(s) {
	case "market":
		return common.Market, nil
	case "limit":
		return common.Limit, nil
	case "ioc":
		return common.IOC, nil
	case "fok":
		return common.FOK, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", s)
	}
}

func mustParseUUID(s, action string) uuid.UUID {
	if s == "" {
		log.Fatalf("Error: -id is required for %s", action)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		log.Fatalf("Invalid -id for %s: %v", action, err)
	}
	return id
}

func parseQuantities(input string) []uint64 {
	parts := strings.Split(input, ",")
	var result []uint64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("Warning: Invalid quantity '%s', skipping.", p)
		}
	}
	return result
}

// sendPlaceOrder constructs and sends a NewOrder message. Market orders
// always carry price 0, matching the engine's price<->type invariant.
func sendPlaceOrder(conn net.Conn, owner string, orderType common.OrderType, ticker string, price, qty uint64, side common.Side) error {
	if orderType == common.Market {
		price = 0
	}
	usernameLen := len(owner)
	totalLen := clobnet.BaseMessageHeaderLen + clobnet.NewOrderMessageHeaderLen + usernameLen
	buf := make([]byte, totalLen)

	binary.BigEndian.PutUint16(buf[0:2], uint16(clobnet.NewOrder))

	binary.BigEndian.PutUint16(buf[2:4], uint16(orderType))

	tickerBytes := make([]byte, 4)
	copy(tickerBytes, ticker)
	copy(buf[4:8], tickerBytes)

	binary.BigEndian.PutUint64(buf[8:16], price)
	binary.BigEndian.PutUint64(buf[16:24], qty)

	buf[24] = byte(side)
	buf[25] = uint8(usernameLen)
	copy(buf[26:], owner)

	_, err := conn.Write(buf)
	return err
}

func sendCancelOrder(conn net.Conn, id uuid.UUID) error {
	buf := make([]byte, clobnet.BaseMessageHeaderLen+clobnet.CancelOrderMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(clobnet.CancelOrder))
	copy(buf[2:18], id[:])
	_, err := conn.Write(buf)
	return err
}

func sendModifyOrder(conn net.Conn, id uuid.UUID, newPrice, newQty uint64) error {
	buf := make([]byte, clobnet.BaseMessageHeaderLen+clobnet.ModifyOrderMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(clobnet.ModifyOrder))
	copy(buf[2:18], id[:])
	if newPrice > 0 {
		buf[18] = 1
		binary.BigEndian.PutUint64(buf[19:27], newPrice)
	}
	if newQty > 0 {
		buf[27] = 1
		binary.BigEndian.PutUint64(buf[28:36], newQty)
	}
	_, err := conn.Write(buf)
	return err
}

func sendLog(conn net.Conn) error {
	buf := make([]byte, clobnet.BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(clobnet.LogBook))
	_, err := conn.Write(buf)
	return err
}

// reportFixedHeaderLen matches Report.Serialize's fixed portion: 1+1+8+8+8+2+4+4+16.
const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 2 + 4 + 4 + 16

// readReports continuously reads and parses Report messages from the server.
func readReports(conn net.Conn) {
	for {
		headerBuf := make([]byte, reportFixedHeaderLen)
		if _, err := io.ReadFull(conn, headerBuf); err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}

		msgType := clobnet.ReportMessageType(headerBuf[0])
		side := common.Side(headerBuf[1])
		qty := binary.BigEndian.Uint64(headerBuf[10:18])
		price := binary.BigEndian.Uint64(headerBuf[18:26])
		counterpartyLen := binary.BigEndian.Uint16(headerBuf[26:28])
		errStrLen := binary.BigEndian.Uint32(headerBuf[28:32])
		ticker := string(headerBuf[32:36])
		orderID := headerBuf[36:52]

		totalVarLen := int(counterpartyLen) + int(errStrLen)
		varBuf := make([]byte, totalVarLen)
		if totalVarLen > 0 {
			if _, err := io.ReadFull(conn, varBuf); err != nil {
				log.Printf("Error reading report body: %v", err)
				break
			}
		}

		errStr := ""
		counterparty := ""
		if errStrLen > 0 {
			errStr = string(varBuf[:errStrLen])
		}
		if counterpartyLen > 0 {
			counterparty = string(varBuf[errStrLen:])
		}

		id, _ := uuid.FromBytes(orderID)

		switch msgType {
		case clobnet.ErrorReport:
			fmt.Printf("\n[SERVER ERROR] %s\n", errStr)
		case clobnet.ExecutionReport:
			sideStr := "BUY"
			if side == common.Sell {
				sideStr = "SELL"
			}
			fmt.Printf("\n[EXECUTION] %s %s | Qty: %d | Price: %d | vs: %s | id: %s\n",
				sideStr, strings.TrimRight(ticker, "\x00"), qty, price, counterparty, id)
		case clobnet.OrderAddedReport:
			fmt.Printf("\n[RESTED] %s | Qty: %d | Price: %d | id: %s\n",
				strings.TrimRight(ticker, "\x00"), qty, price, id)
		case clobnet.OrderCancelledReport:
			fmt.Printf("\n[CANCELLED] Remaining: %d | id: %s\n", qty, id)
		case clobnet.OrderModifiedReport:
			fmt.Printf("\n[MODIFIED] NewQty: %d | NewPrice: %d | id: %s\n", qty, price, id)
		default:
			fmt.Printf("\n[UNKNOWN REPORT TYPE %d]\n", msgType)
		}
	}
}
