package cloud

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/repository"
)

// DynamoAPI is the part of *dynamodb.Client the store uses.
type DynamoAPI interface {
	dynamodb.QueryAPIClient
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoStore is a repository.Store on two DynamoDB tables, both
// partitioned by device id:
//
//	readings: deviceId (S) + ts (N, unix millis)
//	alerts:   deviceId (S) + sk (S, "<13 digit millis>#<alert id>")
//
// A reading's ID is its millisecond timestamp.
type DynamoStore struct {
	svc           DynamoAPI
	deviceID      string
	readingsTable string
	alertsTable   string
	retryBackoff  time.Duration
}

// maxBatchAttempts bounds how often a batch with unprocessed items is resent.
const maxBatchAttempts = 5

var _ repository.Store = (*DynamoStore)(nil)

func NewDynamoStore(ctx context.Context, region, deviceID, readingsTable, alertsTable string) (*DynamoStore, error) {
	cfg, err := loadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return NewDynamoStoreWithClient(dynamodb.NewFromConfig(cfg), deviceID, readingsTable, alertsTable), nil
}

func NewDynamoStoreWithClient(svc DynamoAPI, deviceID, readingsTable, alertsTable string) *DynamoStore {
	return &DynamoStore{
		svc:           svc,
		deviceID:      deviceID,
		readingsTable: readingsTable,
		alertsTable:   alertsTable,
		retryBackoff:  100 * time.Millisecond,
	}
}

type readingItem struct {
	DeviceID           string   `dynamodbav:"deviceId"`
	Timestamp          int64    `dynamodbav:"ts"`
	VoltageAC          float64  `dynamodbav:"voltageAC"`
	VoltageDC          float64  `dynamodbav:"voltageDC"`
	CurrentDC          float64  `dynamodbav:"currentDC"`
	CurrentAC          float64  `dynamodbav:"currentAC"`
	WindSpeed          float64  `dynamodbav:"windSpeed"`
	RPM                *float64 `dynamodbav:"rpm,omitempty"`
	BatteryTemperature float64  `dynamodbav:"batteryTemperature"`
	Humidity           float64  `dynamodbav:"humidity"`
	TurbineStatus      string   `dynamodbav:"turbineStatus"`
	GridWattage        float64  `dynamodbav:"gridWattage"`
	TurbineWattage     float64  `dynamodbav:"turbineWattage"`
	BatterySoC         float64  `dynamodbav:"batterySoc"`
}

func toReadingItem(deviceID string, r domain.Reading) readingItem {
	return readingItem{
		DeviceID:           deviceID,
		Timestamp:          r.Timestamp.UnixMilli(),
		VoltageAC:          r.VoltageAC,
		VoltageDC:          r.VoltageDC,
		CurrentDC:          r.CurrentDC,
		CurrentAC:          r.CurrentAC,
		WindSpeed:          r.WindSpeed,
		RPM:                r.RPM,
		BatteryTemperature: r.BatteryTemperature,
		Humidity:           r.Humidity,
		TurbineStatus:      string(r.TurbineStatus),
		GridWattage:        r.GridWattage,
		TurbineWattage:     r.TurbineWattage,
		BatterySoC:         r.BatterySoC,
	}
}

func (it readingItem) reading() domain.Reading {
	return domain.Reading{
		ID:                 it.Timestamp,
		Timestamp:          time.UnixMilli(it.Timestamp).UTC(),
		VoltageAC:          it.VoltageAC,
		VoltageDC:          it.VoltageDC,
		CurrentDC:          it.CurrentDC,
		CurrentAC:          it.CurrentAC,
		WindSpeed:          it.WindSpeed,
		RPM:                it.RPM,
		BatteryTemperature: it.BatteryTemperature,
		Humidity:           it.Humidity,
		TurbineStatus:      domain.TurbineStatus(it.TurbineStatus),
		GridWattage:        it.GridWattage,
		TurbineWattage:     it.TurbineWattage,
		BatterySoC:         it.BatterySoC,
	}
}

type alertItem struct {
	DeviceID  string  `dynamodbav:"deviceId"`
	SortKey   string  `dynamodbav:"sk"`
	AlertID   string  `dynamodbav:"alertId"`
	Timestamp int64   `dynamodbav:"ts"`
	Kind      string  `dynamodbav:"kind"`
	Message   string  `dynamodbav:"message"`
	Advice    string  `dynamodbav:"advice"`
	Value     float64 `dynamodbav:"value"`
	IsRead    bool    `dynamodbav:"isRead"`
}

func alertSortKey(ms int64, id string) string { return fmt.Sprintf("%013d#%s", ms, id) }

func toAlertItem(deviceID string, a domain.Alert) alertItem {
	ms := a.Timestamp.UnixMilli()
	return alertItem{
		DeviceID:  deviceID,
		SortKey:   alertSortKey(ms, a.ID),
		AlertID:   a.ID,
		Timestamp: ms,
		Kind:      string(a.Kind),
		Message:   a.Message,
		Advice:    a.Advice,
		Value:     a.Value,
		IsRead:    a.IsRead,
	}
}

func (it alertItem) alert() domain.Alert {
	return domain.Alert{
		ID:        it.AlertID,
		Kind:      domain.AlertKind(it.Kind),
		Message:   it.Message,
		Advice:    it.Advice,
		Value:     it.Value,
		IsRead:    it.IsRead,
		Timestamp: time.UnixMilli(it.Timestamp).UTC(),
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("dynamodb %s: %w", op, errors.Join(repository.ErrUnavailable, err))
}

func (s *DynamoStore) AppendReading(ctx context.Context, r *domain.Reading) error {
	item, err := attributevalue.MarshalMap(toReadingItem(s.deviceID, *r))
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	if _, err := s.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.readingsTable),
		Item:      item,
	}); err != nil {
		return unavailable("put reading", err)
	}
	r.ID = r.Timestamp.UnixMilli()
	return nil
}

func (s *DynamoStore) deviceKey() *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: s.deviceID}
}

func millis(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}

// queryAll drains every page of in.
func (s *DynamoStore) queryAll(ctx context.Context, in *dynamodb.QueryInput, limit int) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(s.svc, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
	}
	return items, nil
}

func (s *DynamoStore) ReadingsBetween(ctx context.Context, start, end time.Time) ([]domain.Reading, error) {
	items, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                aws.String(s.readingsTable),
		KeyConditionExpression:   aws.String("deviceId = :d AND #ts BETWEEN :s AND :e"),
		ExpressionAttributeNames: map[string]string{"#ts": "ts"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": s.deviceKey(),
			":s": millis(start),
			":e": millis(end),
		},
		ScanIndexForward: aws.Bool(true),
	}, 0)
	if err != nil {
		return nil, unavailable("query readings", err)
	}
	return decodeReadings(items)
}

func decodeReadings(items []map[string]types.AttributeValue) ([]domain.Reading, error) {
	var rows []readingItem
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal readings: %w", err)
	}
	out := make([]domain.Reading, len(rows))
	for i, it := range rows {
		out[i] = it.reading()
	}
	return out, nil
}

func (s *DynamoStore) LatestReading(ctx context.Context) (*domain.Reading, error) {
	res, err := s.svc.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.readingsTable),
		KeyConditionExpression:    aws.String("deviceId = :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":d": s.deviceKey()},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, unavailable("latest reading", err)
	}
	if len(res.Items) == 0 {
		return nil, nil
	}
	rs, err := decodeReadings(res.Items[:1])
	if err != nil {
		return nil, err
	}
	return &rs[0], nil
}

// WattageSums reads the whole partition. The table has no running totals.
func (s *DynamoStore) WattageSums(ctx context.Context) (float64, float64, error) {
	items, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.readingsTable),
		KeyConditionExpression:    aws.String("deviceId = :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":d": s.deviceKey()},
		ProjectionExpression:      aws.String("gridWattage, turbineWattage"),
	}, 0)
	if err != nil {
		return 0, 0, unavailable("wattage sums", err)
	}
	var rows []struct {
		Grid    float64 `dynamodbav:"gridWattage"`
		Turbine float64 `dynamodbav:"turbineWattage"`
	}
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return 0, 0, fmt.Errorf("failed to unmarshal sums: %w", err)
	}
	var grid, turbine float64
	for _, r := range rows {
		grid += r.Grid
		turbine += r.Turbine
	}
	return grid, turbine, nil
}

func (s *DynamoStore) AppendAlert(ctx context.Context, a *domain.Alert) error {
	item, err := attributevalue.MarshalMap(toAlertItem(s.deviceID, *a))
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if _, err := s.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.alertsTable),
		Item:      item,
	}); err != nil {
		return unavailable("put alert", err)
	}
	return nil
}

// alertQuery builds a query over the device's alerts. Zero start and end
// select everything.
func (s *DynamoStore) alertQuery(kind domain.AlertKind, unreadOnly bool, start, end time.Time) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.alertsTable),
		KeyConditionExpression:    aws.String("deviceId = :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":d": s.deviceKey()},
	}
	if !start.IsZero() || !end.IsZero() {
		in.KeyConditionExpression = aws.String("deviceId = :d AND sk BETWEEN :lo AND :hi")
		in.ExpressionAttributeValues[":lo"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("%013d", start.UnixMilli())}
		// '~' sorts after '#', so every id at the end millisecond is included.
		in.ExpressionAttributeValues[":hi"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("%013d~", end.UnixMilli())}
	}
	var filters []string
	if kind != "" {
		filters = append(filters, "#kind = :k")
		in.ExpressionAttributeNames = map[string]string{"#kind": "kind"}
		in.ExpressionAttributeValues[":k"] = &types.AttributeValueMemberS{Value: string(kind)}
	}
	if unreadOnly {
		filters = append(filters, "isRead = :f")
		in.ExpressionAttributeValues[":f"] = &types.AttributeValueMemberBOOL{Value: false}
	}
	switch len(filters) {
	case 1:
		in.FilterExpression = aws.String(filters[0])
	case 2:
		in.FilterExpression = aws.String(filters[0] + " AND " + filters[1])
	}
	return in
}

func decodeAlerts(items []map[string]types.AttributeValue) ([]domain.Alert, error) {
	var rows []alertItem
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alerts: %w", err)
	}
	out := make([]domain.Alert, len(rows))
	for i, it := range rows {
		out[i] = it.alert()
	}
	return out, nil
}

func (s *DynamoStore) AlertsBetween(ctx context.Context, kind domain.AlertKind, start, end time.Time) ([]domain.Alert, error) {
	items, err := s.queryAll(ctx, s.alertQuery(kind, false, start, end), 0)
	if err != nil {
		return nil, unavailable("query alerts", err)
	}
	return decodeAlerts(items)
}

func (s *DynamoStore) RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	in := s.alertQuery("", false, time.Time{}, time.Time{})
	in.ScanIndexForward = aws.Bool(false)
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}
	items, err := s.queryAll(ctx, in, limit)
	if err != nil {
		return nil, unavailable("recent alerts", err)
	}
	return decodeAlerts(items)
}

func (s *DynamoStore) CountUnread(ctx context.Context, kind domain.AlertKind) (int, error) {
	in := s.alertQuery(kind, true, time.Time{}, time.Time{})
	in.Select = types.SelectCount
	n := 0
	p := dynamodb.NewQueryPaginator(s.svc, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, unavailable("count unread", err)
		}
		n += int(page.Count)
	}
	return n, nil
}

func (s *DynamoStore) alertKeys(ctx context.Context, in *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	in.ProjectionExpression = aws.String("deviceId, sk")
	items, err := s.queryAll(ctx, in, 0)
	if err != nil {
		return nil, err
	}
	keys := make([]map[string]types.AttributeValue, len(items))
	for i, it := range items {
		keys[i] = map[string]types.AttributeValue{"deviceId": it["deviceId"], "sk": it["sk"]}
	}
	return keys, nil
}

func (s *DynamoStore) MarkAllRead(ctx context.Context, kind domain.AlertKind) error {
	keys, err := s.alertKeys(ctx, s.alertQuery(kind, true, time.Time{}, time.Time{}))
	if err != nil {
		return unavailable("mark read", err)
	}
	for _, key := range keys {
		if _, err := s.svc.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:        aws.String(s.alertsTable),
			Key:              key,
			UpdateExpression: aws.String("SET isRead = :t"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t": &types.AttributeValueMemberBOOL{Value: true},
			},
		}); err != nil {
			return unavailable("mark read", err)
		}
	}
	return nil
}

func (s *DynamoStore) ClearAlerts(ctx context.Context) error {
	const batchSize = 25 // BatchWriteItem limit

	keys, err := s.alertKeys(ctx, s.alertQuery("", false, time.Time{}, time.Time{}))
	if err != nil {
		return unavailable("clear alerts", err)
	}
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		reqs := make([]types.WriteRequest, 0, end-i)
		for _, key := range keys[i:end] {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
		}
		if err := s.batchWrite(ctx, map[string][]types.WriteRequest{s.alertsTable: reqs}); err != nil {
			return unavailable("clear alerts", err)
		}
	}
	return nil
}

// batchWrite sends the requests and resends whatever DynamoDB returns as
// unprocessed, backing off exponentially between attempts.
func (s *DynamoStore) batchWrite(ctx context.Context, pending map[string][]types.WriteRequest) error {
	backoff := s.retryBackoff
	for attempt := 1; ; attempt++ {
		out, err := s.svc.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		if out == nil || len(out.UnprocessedItems) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
		if attempt == maxBatchAttempts {
			left := 0
			for _, reqs := range pending {
				left += len(reqs)
			}
			return fmt.Errorf("%d write requests still unprocessed after %d attempts", left, attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (s *DynamoStore) Close() error { return nil }
