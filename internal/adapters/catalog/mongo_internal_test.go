package catalog

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMongoTranslation(t *testing.T) {
	Convey("Given a catalog filter with a list value", t, func() {
		m := mongoFilter(Filter{"institution": "BKA", "year": []int{2023, 2024}})

		So(m["institution"], ShouldEqual, "BKA")
		So(m["year"], ShouldResemble, bson.M{"$in": []int{2023, 2024}})
	})

	Convey("Given find options", t, func() {
		fo := mongoFindOptions(FindOptions{
			Projection: []string{"score"},
			Sort:       []SortKey{{Field: "year", Desc: true}},
			Limit:      5,
		})

		So(*fo.Limit, ShouldEqual, int64(5))
		So(fo.Sort, ShouldResemble, bson.D{{Key: "year", Value: -1}})
		So(fo.Projection, ShouldResemble, bson.D{{Key: "score", Value: 1}})
	})

	Convey("Given a decoded driver document", t, func() {
		id := primitive.NewObjectID()
		doc := plain(bson.M{
			"_id":          id,
			"market_trend": bson.D{{Key: "2024", Value: 0.9}},
			"interests":    bson.A{"data", bson.M{"nested": int32(1)}},
		}).(Document)

		So(doc["_id"], ShouldEqual, id.Hex())
		So(doc["market_trend"], ShouldResemble, Document{"2024": 0.9})
		So(doc["interests"], ShouldResemble, []any{"data", Document{"nested": int32(1)}})
	})
}
