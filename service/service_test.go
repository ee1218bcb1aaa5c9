package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/livewall"
	"github.com/jacentio/livewall/service"
)

const (
	subjectClaim   = "Confirm your live wall"
	subjectOwner   = "Your live wall is ready"
	subjectPremium = "Your live wall is now premium"
)

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	wall, err := f.svc.CreateWall(ctx)
	require.NoError(t, err)
	assert.Equal(t, livewall.WallNew, wall.Status)
	require.NotEmpty(t, wall.OwnerKey)

	events, err := f.svc.Subscribe(ctx, wall.ID)
	require.NoError(t, err)

	img, err := f.svc.AddImage(ctx, wall.ID, wall.OwnerKey, []byte("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.NotEmpty(t, img.OwnerKey)
	assert.NotEmpty(t, img.BlobURL)
	added := nextEvent(t, events)
	assert.Equal(t, livewall.EventAdd, added.Type)
	assert.Equal(t, img.ID, added.Image.ID)

	images, err := f.svc.ListImages(ctx, wall.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, img.ID, images[0].ID)

	claimed, err := f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, livewall.WallNew, claimed.Status, "claim alone does not own the wall")
	assert.Equal(t, 1, f.notifier.count(subjectClaim))

	code := f.validationCode(t, "a@b.com")
	owned, err := f.svc.ConfirmOwnership(ctx, wall.ID, code)
	require.NoError(t, err)
	assert.Equal(t, livewall.WallOwned, owned.Status)
	assert.Equal(t, livewall.EventUpdate, nextEvent(t, events).Type)
	noEvent(t, events)

	premium, err := f.svc.UpgradeWall(ctx, service.PaymentConfirmation{
		WallID:    wall.ID,
		OwnerKey:  wall.OwnerKey,
		Paid:      true,
		PaymentID: "pay_1",
	})
	require.NoError(t, err)
	assert.Equal(t, livewall.WallPremium, premium.Status)

	got, err := f.svc.GetWall(ctx, wall.ID)
	require.NoError(t, err)
	assert.Equal(t, livewall.WallPremium, got.Status)
	assert.Equal(t, "a@b.com", got.OwnerEmail)
	assert.Equal(t, []string{img.ID}, got.ImageIDs)
}

func TestClaimMessageCarriesValidationLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	wall, _ := f.svc.CreateWall(ctx)
	_, err := f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, " A@B.com ")
	require.NoError(t, err)

	code := f.validationCode(t, "a@b.com")
	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a@b.com", msgs[0].to)
	assert.Contains(t, msgs[0].body, "https://walls.example/validate/"+wall.ID+"/"+code)
}

func TestConfirmOwnership_NotifiesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	wall, _ := f.svc.CreateWall(ctx)
	events, err := f.svc.Subscribe(ctx, wall.ID)
	require.NoError(t, err)
	_, err = f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, "a@b.com")
	require.NoError(t, err)
	code := f.validationCode(t, "a@b.com")

	for i := 0; i < 3; i++ {
		w, err := f.svc.ConfirmOwnership(ctx, wall.ID, code)
		require.NoError(t, err)
		assert.Equal(t, livewall.WallOwned, w.Status)
	}

	assert.Equal(t, 1, f.notifier.count(subjectOwner))
	assert.Equal(t, livewall.EventUpdate, nextEvent(t, events).Type)
	noEvent(t, events)

	u, err := f.userByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, u.Validated)
}

func TestConfirmOwnership_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	wall, _ := f.svc.CreateWall(ctx)

	_, err := f.svc.ConfirmOwnership(ctx, wall.ID, "123456")
	assert.ErrorIs(t, err, livewall.ErrNotFound, "no pending owner")

	_, err = f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, "a@b.com")
	require.NoError(t, err)

	_, err = f.svc.ConfirmOwnership(ctx, wall.ID, "wrong")
	assert.ErrorIs(t, err, livewall.ErrForbidden)

	_, err = f.svc.ConfirmOwnership(ctx, "missing", "123456")
	assert.ErrorIs(t, err, livewall.ErrNotFound)

	got, _ := f.svc.GetWall(ctx, wall.ID)
	assert.Equal(t, livewall.WallNew, got.Status)
}

func TestClaimWall_Rules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	wall, _ := f.svc.CreateWall(ctx)

	_, err := f.svc.ClaimWall(ctx, wall.ID, "bad-key", "a@b.com")
	assert.ErrorIs(t, err, livewall.ErrForbidden)

	_, err = f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, "not an email")
	assert.ErrorIs(t, err, livewall.ErrInvalidInput)

	// While NEW the pending email can be replaced.
	_, err = f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, "a@b.com")
	require.NoError(t, err)
	w, err := f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, "c@d.com")
	require.NoError(t, err)
	assert.Equal(t, "c@d.com", w.OwnerEmail)

	_, err = f.svc.ConfirmOwnership(ctx, wall.ID, f.validationCode(t, "c@d.com"))
	require.NoError(t, err)

	// Once owned, a different email is a conflict and the same one is a no-op.
	_, err = f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, "a@b.com")
	assert.ErrorIs(t, err, livewall.ErrConflict)

	w, err = f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, "c@d.com")
	require.NoError(t, err)
	assert.Equal(t, livewall.WallOwned, w.Status)
}

func TestClaimWall_ReusesExistingUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	w1, _ := f.svc.CreateWall(ctx)
	w2, _ := f.svc.CreateWall(ctx)
	_, err := f.svc.ClaimWall(ctx, w1.ID, w1.OwnerKey, "a@b.com")
	require.NoError(t, err)
	code := f.validationCode(t, "a@b.com")

	_, err = f.svc.ClaimWall(ctx, w2.ID, w2.OwnerKey, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, code, f.validationCode(t, "a@b.com"))

	users, _ := f.svc.ListUsers(ctx)
	assert.Len(t, users, 1)
}

func TestUnclaimedWallNotOnDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	owned, _ := f.svc.CreateWall(ctx)
	pending, _ := f.svc.CreateWall(ctx)

	_, err := f.svc.ClaimWall(ctx, owned.ID, owned.OwnerKey, "a@b.com")
	require.NoError(t, err)
	code := f.validationCode(t, "a@b.com")
	_, err = f.svc.ConfirmOwnership(ctx, owned.ID, code)
	require.NoError(t, err)
	_, err = f.svc.ClaimWall(ctx, pending.ID, pending.OwnerKey, "a@b.com")
	require.NoError(t, err)

	_, err = f.svc.AddImage(ctx, owned.ID, owned.OwnerKey, []byte("x"), "image/png")
	require.NoError(t, err)

	u, _ := f.userByEmail(ctx, "a@b.com")
	dash, err := f.svc.UserDashboard(ctx, u.ID, code)
	require.NoError(t, err)
	require.Len(t, dash.Walls, 1)
	assert.Equal(t, owned.ID, dash.Walls[0].Wall.ID)
	assert.Equal(t, 1, dash.Walls[0].ImageCount)

	_, err = f.svc.UserDashboard(ctx, u.ID, "000000")
	assert.ErrorIs(t, err, livewall.ErrForbidden)
}

func TestCreateOwnedWall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	first, _ := f.svc.CreateWall(ctx)
	_, err := f.svc.ClaimWall(ctx, first.ID, first.OwnerKey, "a@b.com")
	require.NoError(t, err)
	code := f.validationCode(t, "a@b.com")

	_, err = f.svc.CreateOwnedWall(ctx, "a@b.com", "999")
	assert.ErrorIs(t, err, livewall.ErrForbidden)

	_, err = f.svc.CreateOwnedWall(ctx, "nobody@b.com", code)
	assert.ErrorIs(t, err, livewall.ErrNotFound)

	wall, err := f.svc.CreateOwnedWall(ctx, "a@b.com", code)
	require.NoError(t, err)
	assert.Equal(t, livewall.WallOwned, wall.Status)
	assert.Equal(t, "a@b.com", wall.OwnerEmail)
	assert.Equal(t, 1, f.notifier.count(subjectOwner))
}

func TestUpgradeWall_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	wall, _ := f.svc.CreateWall(ctx)
	events, _ := f.svc.Subscribe(ctx, wall.ID)

	pay := service.PaymentConfirmation{
		WallID:     wall.ID,
		OwnerKey:   wall.OwnerKey,
		PayerEmail: "Payer@b.com",
		Paid:       true,
		PaymentID:  "pay_1",
	}
	w, err := f.svc.UpgradeWall(ctx, pay)
	require.NoError(t, err)
	assert.Equal(t, livewall.WallPremium, w.Status)
	assert.Equal(t, "payer@b.com", w.OwnerEmail, "payer email adopted")
	assert.Equal(t, livewall.EventUpdate, nextEvent(t, events).Type)

	// Webhook retry and a second payment change nothing.
	_, err = f.svc.UpgradeWall(ctx, pay)
	require.NoError(t, err)
	pay.PaymentID = "pay_2"
	_, err = f.svc.UpgradeWall(ctx, pay)
	require.NoError(t, err)

	assert.Equal(t, 1, f.notifier.count(subjectPremium))
	noEvent(t, events)

	_, err = f.userByEmail(ctx, "payer@b.com")
	assert.NoError(t, err, "payer becomes a user")
}

func TestUpgradeWall_KeepsExistingOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	wall, _ := f.svc.CreateWall(ctx)
	_, err := f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, "a@b.com")
	require.NoError(t, err)
	_, err = f.svc.ConfirmOwnership(ctx, wall.ID, f.validationCode(t, "a@b.com"))
	require.NoError(t, err)

	w, err := f.svc.UpgradeWall(ctx, service.PaymentConfirmation{
		WallID: wall.ID, OwnerKey: wall.OwnerKey, PayerEmail: "other@b.com", Paid: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", w.OwnerEmail)

	msgs := f.notifier.messages()
	assert.Equal(t, "a@b.com", msgs[len(msgs)-1].to)
}

func TestUpgradeWall_UnpaidAndForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	wall, _ := f.svc.CreateWall(ctx)

	w, err := f.svc.UpgradeWall(ctx, service.PaymentConfirmation{WallID: wall.ID, OwnerKey: wall.OwnerKey})
	require.NoError(t, err)
	assert.Equal(t, livewall.WallNew, w.Status)

	_, err = f.svc.UpgradeWall(ctx, service.PaymentConfirmation{WallID: wall.ID, OwnerKey: "x", Paid: true})
	assert.ErrorIs(t, err, livewall.ErrForbidden)
	assert.Empty(t, f.notifier.messages())
}

func TestNotificationFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.notifier.err = livewall.Upstream("email.send", assert.AnError)

	wall, _ := f.svc.CreateWall(ctx)
	_, err := f.svc.ClaimWall(ctx, wall.ID, wall.OwnerKey, "a@b.com")
	assert.NoError(t, err)
}

func TestAddImage_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	wall, _ := f.svc.CreateWall(ctx)

	_, err := f.svc.AddImage(ctx, wall.ID, wall.OwnerKey, []byte("x"), "text/plain")
	assert.ErrorIs(t, err, livewall.ErrInvalidInput)

	_, err = f.svc.AddImage(ctx, wall.ID, wall.OwnerKey, nil, "image/png")
	assert.ErrorIs(t, err, livewall.ErrInvalidInput)

	_, err = f.svc.AddImage(ctx, wall.ID, "wrong", []byte("x"), "image/png")
	assert.ErrorIs(t, err, livewall.ErrForbidden)

	_, err = f.svc.AddImage(ctx, "missing", wall.OwnerKey, []byte("x"), "image/png")
	assert.ErrorIs(t, err, livewall.ErrNotFound)

	assert.Zero(t, f.blobs.Len())
}

func TestAddImage_Moderation(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, rejectingModerator{})
	wall, _ := f.svc.CreateWall(ctx)
	_, err := f.svc.AddImage(ctx, wall.ID, wall.OwnerKey, []byte("x"), "image/png")
	assert.ErrorIs(t, err, livewall.ErrInvalidInput)
	assert.Zero(t, f.blobs.Len(), "rejected image never reaches blob storage")

	f = newFixture(t, rejectingModerator{err: livewall.Upstream("moderation.check", errModeration)})
	wall, _ = f.svc.CreateWall(ctx)
	_, err = f.svc.AddImage(ctx, wall.ID, wall.OwnerKey, []byte("x"), "image/png")
	assert.ErrorIs(t, err, livewall.ErrUpstreamUnavailable)
}

func TestDeleteImage_TwoTierKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	wall, _ := f.svc.CreateWall(ctx)
	events, _ := f.svc.Subscribe(ctx, wall.ID)

	byImageKey, err := f.svc.AddImage(ctx, wall.ID, wall.OwnerKey, []byte("1"), "image/png")
	require.NoError(t, err)
	byWallKey, err := f.svc.AddImage(ctx, wall.ID, wall.OwnerKey, []byte("2"), "image/png")
	require.NoError(t, err)
	nextEvent(t, events)
	nextEvent(t, events)

	err = f.svc.DeleteImage(ctx, byImageKey.ID, "stranger")
	assert.ErrorIs(t, err, livewall.ErrForbidden)

	// Another image's key grants nothing.
	err = f.svc.DeleteImage(ctx, byImageKey.ID, byWallKey.OwnerKey)
	assert.ErrorIs(t, err, livewall.ErrForbidden)

	require.NoError(t, f.svc.DeleteImage(ctx, byImageKey.ID, byImageKey.OwnerKey))
	deleted := nextEvent(t, events)
	assert.Equal(t, livewall.EventDelete, deleted.Type)
	assert.Equal(t, byImageKey.ID, deleted.Image.ID)

	require.NoError(t, f.svc.DeleteImage(ctx, byWallKey.ID, wall.OwnerKey))
	nextEvent(t, events)

	_, _, err = f.svc.GetImage(ctx, byImageKey.ID)
	assert.ErrorIs(t, err, livewall.ErrNotFound)
	images, _ := f.svc.ListImages(ctx, wall.ID)
	assert.Empty(t, images)
	assert.Zero(t, f.blobs.Len())

	err = f.svc.DeleteImage(ctx, byImageKey.ID, byImageKey.OwnerKey)
	assert.ErrorIs(t, err, livewall.ErrNotFound)
}

func TestGetImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	wall, _ := f.svc.CreateWall(ctx)

	img, err := f.svc.AddImage(ctx, wall.ID, wall.OwnerKey, []byte("png bytes"), "image/png")
	require.NoError(t, err)

	got, data, err := f.svc.GetImage(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.ContentType)
	assert.Equal(t, "png bytes", string(data))
}

func TestModerationView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	wall, _ := f.svc.CreateWall(ctx)

	var ids []string
	for i := 0; i < 12; i++ {
		img, err := f.svc.AddImage(ctx, wall.ID, wall.OwnerKey, []byte{byte(i)}, "image/png")
		require.NoError(t, err)
		ids = append(ids, img.ID)
	}

	view, err := f.svc.Moderation(ctx, wall.ID, wall.OwnerKey)
	require.NoError(t, err)
	require.Len(t, view.Images, 10)
	assert.Len(t, view.Wall.ImageIDs, 12)
	assert.Nil(t, view.Owner)
	assert.GreaterOrEqual(t, view.Images[0].Timestamp, view.Images[9].Timestamp)

	_, err = f.svc.Moderation(ctx, wall.ID, "nope")
	assert.ErrorIs(t, err, livewall.ErrForbidden)
}

func TestSubscribe_UnknownWall(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Subscribe(context.Background(), "missing")
	assert.ErrorIs(t, err, livewall.ErrNotFound)
}

func TestEventsAreWallScoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	w1, _ := f.svc.CreateWall(ctx)
	w2, _ := f.svc.CreateWall(ctx)

	ch1, _ := f.svc.Subscribe(ctx, w1.ID)
	ch2, _ := f.svc.Subscribe(ctx, w2.ID)

	_, err := f.svc.AddImage(ctx, w1.ID, w1.OwnerKey, []byte("x"), "image/gif")
	require.NoError(t, err)

	assert.Equal(t, w1.ID, nextEvent(t, ch1).WallID)
	noEvent(t, ch2)
}

func TestOpenWall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	wall, _ := f.svc.CreateWall(ctx)
	_, err := f.svc.AddImage(ctx, wall.ID, wall.OwnerKey, []byte("x"), "image/png")
	require.NoError(t, err)

	w, images, err := f.svc.OpenWall(ctx, wall.ID, wall.OwnerKey)
	require.NoError(t, err)
	assert.Len(t, images, 1)
	assert.Len(t, w.ImageIDs, 1)

	_, _, err = f.svc.OpenWall(ctx, wall.ID, strings.ToUpper(wall.OwnerKey)+"x")
	assert.ErrorIs(t, err, livewall.ErrForbidden)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	claimed, _ := f.svc.CreateWall(ctx)
	_, err := f.svc.ClaimWall(ctx, claimed.ID, claimed.OwnerKey, "a@example.com")
	require.NoError(t, err)
	img, err := f.svc.AddImage(ctx, claimed.ID, claimed.OwnerKey, []byte("1"), "image/png")
	require.NoError(t, err)
	empty, _ := f.svc.CreateWall(ctx)

	sum, err := f.svc.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, &service.ResetSummary{Walls: 2, Images: 1, Users: 1}, sum)

	walls, err := f.svc.ListWalls(ctx)
	require.NoError(t, err)
	assert.Empty(t, walls)
	users, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	_, err = f.svc.LookupImage(ctx, img.ID)
	assert.ErrorIs(t, err, livewall.ErrNotFound)
	_, err = f.svc.GetWall(ctx, empty.ID)
	assert.ErrorIs(t, err, livewall.ErrNotFound)
	assert.Zero(t, f.blobs.Len())

	// Nothing left to remove.
	sum, err = f.svc.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, &service.ResetSummary{}, sum)
}
