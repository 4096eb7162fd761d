package service

import (
	"context"
	"testing"
	"time"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	values   map[string]string
	fileName string
	err      error
}

func (r *fakeRenderer) Render(values map[string]string, fileName string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.values = values
	r.fileName = fileName
	return "/secure/generated_contracts/" + fileName, nil
}

func TestContractValues(t *testing.T) {
	today := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	view := &DocumentView{
		PersonalData: PersonalData{
			FullName:           strPtr("Ivan Petrov"),
			ResidentialAddress: strPtr("Novgorod, Lenina 2"),
		},
		ContractNumber: strPtr("1.2.1"),
		Amount:         strPtr("15000"),
		WeeksCount:     intPtr(4),
		FilledDate:     strPtr("2025-01-01"),
		EndDate:        strPtr("2025-01-29"),
	}

	values := ContractValues("Великий Новгород", today, "ivan@example.com", view)
	assert.Equal(t, "Великий Новгород", values["CITY"])
	assert.Equal(t, "10.01.2025", values["DATE"])
	assert.Equal(t, "Ivan Petrov", values["FULL_NAME"])
	assert.Equal(t, "Ivan Petrov", values["ФИО"])
	assert.Equal(t, "Novgorod, Lenina 2", values["ADDRESS"])
	assert.Equal(t, "-", values["BANK_ACCOUNT"])
	assert.Equal(t, "1.2.1", values["№_договора"])
	assert.Equal(t, "4", values["Кол_во_недель"])
	assert.Equal(t, "недели", values["неделю"])
	assert.Equal(t, "01.01.2025", values["Дата_заполнения"])
	assert.Equal(t, "01.01.2025", values["Дата_аполнения"])
	assert.Equal(t, "29.01.2025", values["Дат_конец_аренды"])
	assert.Equal(t, "ivan@example.com", values["EMAIL"])
}

func TestContractValues_Defaults(t *testing.T) {
	today := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	values := ContractValues("Москва", today, "a@b.c", &DocumentView{})

	assert.Equal(t, "05.03.2025", values["Дата_заполнения"])
	assert.Empty(t, values["Дат_конец_аренды"])
	assert.Empty(t, values["Кол_во_недель"])
	assert.Empty(t, values["ADDRESS"])
}

func TestDocumentService_ExportContract(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.docs.ExportContract(ctx, 1, 1)
	assertKind(t, err, apperr.KindNotFound)

	renderer := &fakeRenderer{}
	env.docs.renderer = renderer

	draft := env.createUser(t, "draft@example.com")
	_, err = env.docs.ExportContract(ctx, draft, 1)
	assertKind(t, err, apperr.KindInvalidState)

	id := env.approvedUser(t, "ivan@example.com")
	view, err := env.docs.AdminUpdateDocument(ctx, id, adminUpdate(t,
		`{"amount": 15000, "weeks_count": 4, "filled_date": "2025-01-01", "bike_serial": "BK-77"}`))
	require.NoError(t, err)

	path, err := env.docs.ExportContract(ctx, id, *view.ID)
	require.NoError(t, err)
	assert.Contains(t, path, renderer.fileName)
	assert.Equal(t, "contract_user_"+itoa(id)+"_"+itoa(*view.ID)+".docx", renderer.fileName)
	assert.Equal(t, "Ivan Petrov", renderer.values["FULL_NAME"])
	assert.Equal(t, "40817810099910004312", renderer.values["BANK_ACCOUNT"])
	assert.Equal(t, "BK-77", renderer.values["Серийный_номер_велик"])
	assert.Equal(t, "15000", renderer.values["Сумма"])
	assert.Equal(t, "Великий Новгород", renderer.values["CITY"])

	_, err = env.docs.ExportContract(ctx, id, *view.ID+100)
	assertKind(t, err, apperr.KindNotFound)

	renderer.err = apperr.NotFound("Contract template not found")
	_, err = env.docs.ExportContract(ctx, id, *view.ID)
	assertKind(t, err, apperr.KindNotFound)
}
