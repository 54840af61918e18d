package sandbox

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/nitinkhare/btcstrategylab/internal/ledger"
	"github.com/nitinkhare/btcstrategylab/internal/pricetable"
)

// barsToLua converts a defensive copy of a price-table view into the
// ascending row-of-tables shape a strategy's df argument takes.
func barsToLua(L *lua.LState, bars []pricetable.Bar) *lua.LTable {
	rows := L.NewTable()
	for _, b := range bars {
		row := L.NewTable()
		row.RawSetString("Date", lua.LString(b.Date.Format("2006-01-02")))
		row.RawSetString("Open", lua.LNumber(b.Open))
		row.RawSetString("High", lua.LNumber(b.High))
		row.RawSetString("Low", lua.LNumber(b.Low))
		row.RawSetString("Close", lua.LNumber(b.Close))
		row.RawSetString("Volume", lua.LNumber(b.Volume))
		rows.Append(row)
	}
	return rows
}

// holdingsToLua converts a holdings snapshot into the mapping list a
// strategy's holdings argument takes.
func holdingsToLua(L *lua.LState, snaps []ledger.HoldingSnapshot) *lua.LTable {
	rows := L.NewTable()
	for _, s := range snaps {
		row := L.NewTable()
		row.RawSetString("holding_id", lua.LString(s.HoldingID))
		row.RawSetString("asset", lua.LString(string(s.Asset)))
		row.RawSetString("amount", lua.LNumber(s.Amount))
		row.RawSetString("unit_value_usd", lua.LNumber(s.UnitValueUSD))
		row.RawSetString("total_value_usd", lua.LNumber(s.TotalValueUSD))
		if s.StopLoss != nil {
			row.RawSetString("stop_loss", lua.LNumber(*s.StopLoss))
		} else {
			row.RawSetString("stop_loss", lua.LNil)
		}
		if s.TakeProfit != nil {
			row.RawSetString("take_profit", lua.LNumber(*s.TakeProfit))
		} else {
			row.RawSetString("take_profit", lua.LNil)
		}
		rows.Append(row)
	}
	return rows
}

// ordersFromLua converts the strategy's return value into RawOrders for
// ledger.ParseOrders. nil/LNil becomes an empty list; anything that is
// not a Lua table (array-shaped) is rejected.
func ordersFromLua(v lua.LValue) ([]ledger.RawOrder, error) {
	if v == nil || v == lua.LNil {
		return nil, nil
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("run() must return a list of orders (or nil), got %s", v.Type().String())
	}

	var raws []ledger.RawOrder
	var outerErr error
	tbl.ForEach(func(_, item lua.LValue) {
		if outerErr != nil {
			return
		}
		row, ok := item.(*lua.LTable)
		if !ok {
			outerErr = fmt.Errorf("order entries must be tables, got %s", item.Type().String())
			return
		}
		raw, extra := rowToRawOrder(row)
		raw.ExtraFields = extra
		raws = append(raws, raw)
	})
	if outerErr != nil {
		return nil, outerErr
	}
	return raws, nil
}

// ToGoValue recursively converts a Lua return value into plain Go types
// (map[string]interface{}, []interface{}, float64, string, bool, nil) so
// callers outside the sandbox (the analysis CLI) can
// json.Marshal a strategy's run_on_data result without depending on
// gopher-lua types.
func ToGoValue(v lua.LValue) interface{} {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if isArrayTable(val) {
			out := make([]interface{}, 0, val.Len())
			val.ForEach(func(_, item lua.LValue) {
				out = append(out, ToGoValue(item))
			})
			return out
		}
		out := make(map[string]interface{})
		val.ForEach(func(k, item lua.LValue) {
			out[lua.LVAsString(k)] = ToGoValue(item)
		})
		return out
	default:
		return v.String()
	}
}

// isArrayTable reports whether t looks like a sequence (keys 1..Len())
// rather than a string-keyed mapping. An empty table is treated as an
// empty array.
func isArrayTable(t *lua.LTable) bool {
	n := t.Len()
	arrayKeys := 0
	isArray := true
	t.ForEach(func(k, _ lua.LValue) {
		arrayKeys++
		if num, ok := k.(lua.LNumber); !ok || int(num) < 1 || int(num) > n {
			isArray = false
		}
	})
	return isArray && arrayKeys == n
}

var knownOrderFields = map[string]bool{
	"action": true, "asset": true, "amount": true,
	"stop_loss": true, "take_profit": true, "holding_id": true,
}

func rowToRawOrder(row *lua.LTable) (ledger.RawOrder, []string) {
	var raw ledger.RawOrder
	var extra []string

	row.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok || !knownOrderFields[string(key)] {
			extra = append(extra, fmt.Sprintf("%v", k))
			return
		}
		switch string(key) {
		case "action":
			raw.Action = lua.LVAsString(v)
		case "asset":
			raw.Asset = lua.LVAsString(v)
		case "amount":
			raw.Amount = float64(lua.LVAsNumber(v))
		case "holding_id":
			raw.HoldingID = lua.LVAsString(v)
		case "stop_loss":
			if v != lua.LNil {
				f := float64(lua.LVAsNumber(v))
				raw.StopLoss = &f
			}
		case "take_profit":
			if v != lua.LNil {
				f := float64(lua.LVAsNumber(v))
				raw.TakeProfit = &f
			}
		}
	})
	return raw, extra
}
