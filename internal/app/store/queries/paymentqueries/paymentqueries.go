// internal/app/store/queries/paymentqueries/paymentqueries.go
//
// Aggregation queries over the payments collection for dashboards and
// reports. These are read-only rollups; the payment lifecycle lives in
// internal/app/payments.
package paymentqueries

import (
	"context"
	"time"

	"github.com/dalemusser/paytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Queries struct {
	payments *mongo.Collection
}

func New(db *mongo.Database) *Queries {
	return &Queries{payments: db.Collection("payments")}
}

// Scope restricts a rollup to an organization, a user, a payment-date
// window, or any combination. Nil fields mean no restriction.
type Scope struct {
	OrgID  *primitive.ObjectID
	UserID *primitive.ObjectID
	From   *time.Time
	To     *time.Time
}

func (sc Scope) match() bson.M {
	m := bson.M{}
	if sc.OrgID != nil {
		m["org_id"] = sc.OrgID
	}
	if sc.UserID != nil {
		m["user_id"] = sc.UserID
	}
	if sc.From != nil || sc.To != nil {
		dateQuery := bson.M{}
		if sc.From != nil {
			dateQuery["$gte"] = *sc.From
		}
		if sc.To != nil {
			dateQuery["$lte"] = *sc.To
		}
		m["payment_date"] = dateQuery
	}
	return m
}

// StatusTotal is one row of TotalsByStatus.
type StatusTotal struct {
	Status models.PaymentStatus
	Count  int64
	Total  float64
}

// TotalsByStatus returns count and amount totals per payment status.
// Every status appears in the result in a fixed order, zero-filled when
// no payments carry it, so summary cards always render all four.
func (q *Queries) TotalsByStatus(ctx context.Context, scope Scope) ([]StatusTotal, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: scope.match()}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$amount"},
		}}},
	}

	cur, err := q.payments.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status models.PaymentStatus `bson:"_id"`
		Count  int64                `bson:"count"`
		Total  float64              `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	byStatus := make(map[models.PaymentStatus]StatusTotal, len(rows))
	for _, row := range rows {
		byStatus[row.Status] = StatusTotal{Status: row.Status, Count: row.Count, Total: row.Total}
	}

	out := make([]StatusTotal, 0, len(models.AllPaymentStatuses))
	for _, st := range models.AllPaymentStatuses {
		if row, ok := byStatus[st]; ok {
			out = append(out, row)
		} else {
			out = append(out, StatusTotal{Status: st})
		}
	}
	return out, nil
}

// MonthPoint is one month of the collection trend.
type MonthPoint struct {
	Year  int
	Month time.Month
	Label string // "Jan 2026"
	Count int64
	Total float64
}

// MonthlyTrend returns completed-payment totals for the last months
// calendar months including the current one, oldest first. Months with
// no payments appear zero-filled, so the chart always has exactly
// months points.
func (q *Queries) MonthlyTrend(ctx context.Context, scope Scope, months int) ([]MonthPoint, error) {
	if months <= 0 {
		months = 6
	}

	now := time.Now().UTC()
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	// The trend always covers its own trailing window; a date range on
	// the scope applies to the other rollups, not here.
	scope.From, scope.To = nil, nil

	match := scope.match()
	match["status"] = models.PaymentCompleted
	match["payment_date"] = bson.M{"$gte": firstMonth}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"year":  bson.M{"$year": "$payment_date"},
				"month": bson.M{"$month": "$payment_date"},
			},
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$amount"},
		}}},
	}

	cur, err := q.payments.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Key struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
		} `bson:"_id"`
		Count int64   `bson:"count"`
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	type ym struct {
		year  int
		month time.Month
	}
	byMonth := make(map[ym]MonthPoint, len(rows))
	for _, row := range rows {
		key := ym{row.Key.Year, time.Month(row.Key.Month)}
		byMonth[key] = MonthPoint{
			Year:  key.year,
			Month: key.month,
			Count: row.Count,
			Total: row.Total,
		}
	}

	out := make([]MonthPoint, 0, months)
	for i := 0; i < months; i++ {
		m := firstMonth.AddDate(0, i, 0)
		key := ym{m.Year(), m.Month()}
		point, ok := byMonth[key]
		if !ok {
			point = MonthPoint{Year: m.Year(), Month: m.Month()}
		}
		point.Label = m.Format("Jan 2006")
		out = append(out, point)
	}
	return out, nil
}

// CategorySlice is one category's share of completed collections.
type CategorySlice struct {
	CategoryID primitive.ObjectID
	Count      int64
	Total      float64
}

// CategoryDistribution returns completed-payment totals grouped by
// category, largest first. Categories with no completed payments are
// omitted.
func (q *Queries) CategoryDistribution(ctx context.Context, scope Scope) ([]CategorySlice, error) {
	match := scope.match()
	match["status"] = models.PaymentCompleted

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   "$category_id",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$amount"},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}}}},
	}

	cur, err := q.payments.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		CategoryID primitive.ObjectID `bson:"_id"`
		Count      int64              `bson:"count"`
		Total      float64            `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := make([]CategorySlice, 0, len(rows))
	for _, row := range rows {
		out = append(out, CategorySlice{CategoryID: row.CategoryID, Count: row.Count, Total: row.Total})
	}
	return out, nil
}

// PayerTotal is one payer's completed-payment total.
type PayerTotal struct {
	UserID primitive.ObjectID
	Count  int64
	Total  float64
}

// TopPayers returns the members with the highest completed-payment totals,
// largest first, capped at limit (default 10).
func (q *Queries) TopPayers(ctx context.Context, scope Scope, limit int64) ([]PayerTotal, error) {
	if limit <= 0 {
		limit = 10
	}

	match := scope.match()
	match["status"] = models.PaymentCompleted

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   "$user_id",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$amount"},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cur, err := q.payments.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		UserID primitive.ObjectID `bson:"_id"`
		Count  int64              `bson:"count"`
		Total  float64            `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := make([]PayerTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, PayerTotal{UserID: row.UserID, Count: row.Count, Total: row.Total})
	}
	return out, nil
}
