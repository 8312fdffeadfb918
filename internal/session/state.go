package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Step is the prompt a session is waiting on. Customer and operator flows
// reuse small numbers, so a Step is only meaningful together with its flow.
type Step int

const (
	StepTopMenu      Step = 0
	StepBusList      Step = 1
	StepAwaitBus     Step = 2
	StepAwaitSeat    Step = 3
	StepAwaitPayment Step = 4

	StepAwaitPIN        Step = 0
	StepOperatorMenu    Step = 1
	StepAwaitWalkInBus  Step = 5
	StepAwaitVerifyCode Step = 20
	StepAwaitBoardCode  Step = 30
)

type Kind string

const (
	KindTopMenu         Kind = "top_menu"
	KindBusList         Kind = "bus_list"
	KindAwaitBus        Kind = "await_bus"
	KindAwaitSeat       Kind = "await_seat"
	KindAwaitPayment    Kind = "await_payment"
	KindAwaitPIN        Kind = "await_pin"
	KindOperatorMenu    Kind = "operator_menu"
	KindAwaitWalkInBus  Kind = "await_walk_in_bus"
	KindAwaitVerifyCode Kind = "await_verify_code"
	KindAwaitBoardCode  Kind = "await_board_code"
)

// State is the scratch data of one step. Every step has exactly one concrete
// State type, so data that does not belong to the current step cannot exist.
type State interface {
	Kind() Kind
	Step() Step
}

// BusRef is the snapshot of a bus taken when a list was shown. It resolves
// the caller's index; seat counts in it are for display only.
type BusRef struct {
	ID             int64     `json:"id"`
	Route          string    `json:"route"`
	DepartureTime  time.Time `json:"departure_time"`
	AvailableSeats int       `json:"available_seats"`
	TotalSeats     int       `json:"total_seats"`
	Price          int64     `json:"price"`
}

type TopMenu struct{}

type BusList struct {
	Buses []BusRef `json:"buses"`
}

type AwaitBus struct {
	Buses []BusRef `json:"buses"`
}

// Pick resolves a 1-based index against the snapshot.
func (s AwaitBus) Pick(index int) (BusRef, bool) { return pick(s.Buses, index) }

type AwaitSeat struct {
	BusID          int64 `json:"bus_id"`
	AvailableSeats int   `json:"available_seats"`
}

type AwaitPayment struct {
	BusID     int64  `json:"bus_id"`
	BookingID int64  `json:"booking_id"`
	Code      string `json:"code"`
}

type AwaitPIN struct{}

type OperatorMenu struct{}

type AwaitWalkInBus struct {
	Buses []BusRef `json:"buses"`
}

func (s AwaitWalkInBus) Pick(index int) (BusRef, bool) { return pick(s.Buses, index) }

type AwaitVerifyCode struct{}

type AwaitBoardCode struct{}

func (TopMenu) Kind() Kind         { return KindTopMenu }
func (BusList) Kind() Kind         { return KindBusList }
func (AwaitBus) Kind() Kind        { return KindAwaitBus }
func (AwaitSeat) Kind() Kind       { return KindAwaitSeat }
func (AwaitPayment) Kind() Kind    { return KindAwaitPayment }
func (AwaitPIN) Kind() Kind        { return KindAwaitPIN }
func (OperatorMenu) Kind() Kind    { return KindOperatorMenu }
func (AwaitWalkInBus) Kind() Kind  { return KindAwaitWalkInBus }
func (AwaitVerifyCode) Kind() Kind { return KindAwaitVerifyCode }
func (AwaitBoardCode) Kind() Kind  { return KindAwaitBoardCode }

func (TopMenu) Step() Step         { return StepTopMenu }
func (BusList) Step() Step         { return StepBusList }
func (AwaitBus) Step() Step        { return StepAwaitBus }
func (AwaitSeat) Step() Step       { return StepAwaitSeat }
func (AwaitPayment) Step() Step    { return StepAwaitPayment }
func (AwaitPIN) Step() Step        { return StepAwaitPIN }
func (OperatorMenu) Step() Step    { return StepOperatorMenu }
func (AwaitWalkInBus) Step() Step  { return StepAwaitWalkInBus }
func (AwaitVerifyCode) Step() Step { return StepAwaitVerifyCode }
func (AwaitBoardCode) Step() Step  { return StepAwaitBoardCode }

func pick(buses []BusRef, index int) (BusRef, bool) {
	if index < 1 || index > len(buses) {
		return BusRef{}, false
	}
	return buses[index-1], true
}

func decodeState(kind Kind, raw json.RawMessage) (State, error) {
	switch kind {
	case "":
		return nil, nil
	case KindTopMenu:
		return TopMenu{}, nil
	case KindAwaitPIN:
		return AwaitPIN{}, nil
	case KindOperatorMenu:
		return OperatorMenu{}, nil
	case KindAwaitVerifyCode:
		return AwaitVerifyCode{}, nil
	case KindAwaitBoardCode:
		return AwaitBoardCode{}, nil
	case KindBusList:
		return decodeAs[BusList](raw)
	case KindAwaitBus:
		return decodeAs[AwaitBus](raw)
	case KindAwaitSeat:
		return decodeAs[AwaitSeat](raw)
	case KindAwaitPayment:
		return decodeAs[AwaitPayment](raw)
	case KindAwaitWalkInBus:
		return decodeAs[AwaitWalkInBus](raw)
	default:
		return nil, fmt.Errorf("unknown session state %q", kind)
	}
}

func decodeAs[T State](raw json.RawMessage) (State, error) {
	var v T
	if err := unmarshalRaw(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func unmarshalRaw(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
