package store

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/keepsake/pkg/types"
)

// demoUserID is the user that receives seeded demo memories.
const demoUserID = "demo"

// SeedDemo inserts a handful of demo memories for the demo user so a fresh
// install has something to show. A store that already holds records for the
// demo user is left untouched.
func SeedDemo(ctx context.Context, b Backend) error {
	existing, err := b.Recent(ctx, demoUserID, 1)
	if err != nil {
		return fmt.Errorf("store: failed to check demo data: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now()
	seeds := []*Record{
		{
			Content:    "和小明一起去香山爬山，看了红叶",
			Detail:     "周末天气很好，爬到山顶用了两个小时",
			TopicTags:  []string{"运动", "朋友"},
			Importance: 0.7,
			CreatedAt:  now.AddDate(0, 0, -3),
		},
		{
			Content:    "开始学习吉他，买了一把民谣琴",
			TopicTags:  []string{"爱好", "音乐"},
			Importance: 0.8,
			CreatedAt:  now.AddDate(0, 0, -10),
		},
		{
			Content:    "妈妈打电话来提醒天冷加衣服",
			TopicTags:  []string{"家人"},
			Importance: 0.6,
			CreatedAt:  now.AddDate(0, 0, -1),
		},
		{
			Content:    "晚上和同事聚餐吃了火锅",
			TopicTags:  []string{"美食", "同事"},
			Importance: 0.4,
			CreatedAt:  now.AddDate(0, 0, -2),
		},
	}
	for _, rec := range seeds {
		rec.ID = types.NewID()
		rec.UserID = demoUserID
		if err := b.Save(ctx, rec); err != nil {
			return fmt.Errorf("store: failed to seed demo data: %w", err)
		}
	}
	return nil
}
