package graphql

import (
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/shopspring/decimal"

	"autohaus/internal/app"
	"autohaus/internal/auth"
	"autohaus/pkg/domain"
	"autohaus/pkg/store"
)

var motorType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Motor",
	Fields: graphql.Fields{
		"name":     &graphql.Field{Type: graphql.String},
		"ps":       &graphql.Field{Type: graphql.Int},
		"zylinder": &graphql.Field{Type: graphql.Int},
		"drehzahl": &graphql.Field{Type: graphql.String},
	},
})

var reperaturType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Reperatur",
	Fields: graphql.Fields{
		"kosten":     &graphql.Field{Type: graphql.String},
		"mechaniker": &graphql.Field{Type: graphql.String},
		"datum":      &graphql.Field{Type: graphql.String},
	},
})

var autoType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Auto",
	Fields: graphql.Fields{
		"id":                  &graphql.Field{Type: graphql.ID},
		"version":             &graphql.Field{Type: graphql.Int},
		"fahrgestellnummer":   &graphql.Field{Type: graphql.String},
		"marke":               &graphql.Field{Type: graphql.String},
		"modell":              &graphql.Field{Type: graphql.String},
		"baujahr":             &graphql.Field{Type: graphql.Int},
		"art":                 &graphql.Field{Type: graphql.String},
		"preis":               &graphql.Field{Type: graphql.String},
		"sicherheitsmerkmale": &graphql.Field{Type: graphql.NewList(graphql.String)},
		"motor":               &graphql.Field{Type: motorType},
		"reperaturen":         &graphql.Field{Type: graphql.NewList(reperaturType)},
	},
})

var suchkriterienInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "SuchkriterienInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"fahrgestellnummer": &graphql.InputObjectFieldConfig{Type: graphql.String},
		"marke":             &graphql.InputObjectFieldConfig{Type: graphql.String},
		"modell":            &graphql.InputObjectFieldConfig{Type: graphql.String},
		"motor":             &graphql.InputObjectFieldConfig{Type: graphql.String},
		"baujahr":           &graphql.InputObjectFieldConfig{Type: graphql.String},
		"preis":             &graphql.InputObjectFieldConfig{Type: graphql.String},
		"art":               &graphql.InputObjectFieldConfig{Type: graphql.String},
		"esb":               &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		"abs":               &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		"airbag":            &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		"parkassistent":     &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
	},
})

var motorInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "MotorInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"name":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"ps":       &graphql.InputObjectFieldConfig{Type: graphql.Int},
		"zylinder": &graphql.InputObjectFieldConfig{Type: graphql.Int},
		"drehzahl": &graphql.InputObjectFieldConfig{Type: graphql.String},
	},
})

var reperaturInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "ReperaturInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"kosten":     &graphql.InputObjectFieldConfig{Type: graphql.String},
		"mechaniker": &graphql.InputObjectFieldConfig{Type: graphql.String},
		"datum":      &graphql.InputObjectFieldConfig{Type: graphql.String},
	},
})

var autoInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "AutoInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"fahrgestellnummer":   &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"marke":               &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"modell":              &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"baujahr":             &graphql.InputObjectFieldConfig{Type: graphql.Int},
		"art":                 &graphql.InputObjectFieldConfig{Type: graphql.String},
		"preis":               &graphql.InputObjectFieldConfig{Type: graphql.String},
		"sicherheitsmerkmale": &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.String)},
		"motor":               &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(motorInput)},
		"reperaturen":         &graphql.InputObjectFieldConfig{Type: graphql.NewList(reperaturInput)},
	},
})

var autoUpdateInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "AutoUpdateInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"id":                  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
		"version":             &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Int)},
		"marke":               &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"modell":              &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"baujahr":             &graphql.InputObjectFieldConfig{Type: graphql.Int},
		"art":                 &graphql.InputObjectFieldConfig{Type: graphql.String},
		"preis":               &graphql.InputObjectFieldConfig{Type: graphql.String},
		"sicherheitsmerkmale": &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.String)},
	},
})

var createPayloadType = graphql.NewObject(graphql.ObjectConfig{
	Name: "CreatePayload",
	Fields: graphql.Fields{
		"id": &graphql.Field{Type: graphql.ID},
	},
})

var updatePayloadType = graphql.NewObject(graphql.ObjectConfig{
	Name: "UpdatePayload",
	Fields: graphql.Fields{
		"version": &graphql.Field{Type: graphql.Int},
	},
})

// NewSchema builds the executable schema over the read and write services.
func NewSchema(reader *app.ReadService, writer *app.WriteService) (graphql.Schema, error) {
	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"auto": &graphql.Field{
				Type: autoType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := parseID(p.Args["id"])
					if err != nil {
						return nil, err
					}
					auto, err := reader.FindByID(p.Context, id, true)
					if err != nil {
						return nil, translate(err)
					}
					return auto, nil
				},
			},
			"autos": &graphql.Field{
				Type: graphql.NewList(autoType),
				Args: graphql.FieldConfigArgument{
					"suchkriterien": &graphql.ArgumentConfig{Type: suchkriterienInput},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					criteria := criteriaFromArgs(p.Args["suchkriterien"])
					page, err := reader.Find(p.Context, criteria, store.NewPageable(-1, -1))
					if err != nil {
						return nil, translate(err)
					}
					return page.Content, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"create": &graphql.Field{
				Type: createPayloadType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(autoInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := requireRole(p, auth.RoleAdmin, auth.RoleKunde); err != nil {
						return nil, err
					}
					auto, err := autoFromInput(p.Args["input"])
					if err != nil {
						return nil, err
					}
					id, err := writer.Create(p.Context, auto)
					if err != nil {
						return nil, translate(err)
					}
					return map[string]interface{}{"id": id}, nil
				},
			},
			"update": &graphql.Field{
				Type: updatePayloadType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(autoUpdateInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := requireRole(p, auth.RoleAdmin, auth.RoleKunde); err != nil {
						return nil, err
					}
					input, _ := p.Args["input"].(map[string]interface{})
					id, err := parseID(input["id"])
					if err != nil {
						return nil, err
					}
					version, _ := input["version"].(int)
					auto, err := autoFromInput(input)
					if err != nil {
						return nil, err
					}
					newVersion, err := writer.Update(p.Context, id, auto, domain.FormatVersion(version))
					if err != nil {
						return nil, translate(err)
					}
					return map[string]interface{}{"version": newVersion}, nil
				},
			},
			"delete": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := requireRole(p, auth.RoleAdmin); err != nil {
						return nil, err
					}
					id, err := parseID(p.Args["id"])
					if err != nil {
						return nil, err
					}
					ok, err := writer.Delete(p.Context, id)
					if err != nil {
						return nil, translate(err)
					}
					return ok, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func requireRole(p graphql.ResolveParams, roles ...string) error {
	principal, ok := auth.PrincipalFromContext(p.Context)
	if !ok {
		return &forbiddenError{msg: "Kein Token vorhanden."}
	}
	for _, role := range roles {
		if principal.HasRole(role) {
			return nil
		}
	}
	return &forbiddenError{msg: "Keine ausreichende Berechtigung."}
}

func parseID(raw interface{}) (uint, error) {
	s, ok := raw.(string)
	if !ok {
		return 0, &inputError{msg: "Die ID fehlt."}
	}
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, &inputError{msg: "Die ID " + s + " ist ungueltig."}
	}
	return uint(id), nil
}

func criteriaFromArgs(raw interface{}) store.Criteria {
	criteria := store.Criteria{}
	input, ok := raw.(map[string]interface{})
	if !ok {
		return criteria
	}
	for key, value := range input {
		switch v := value.(type) {
		case string:
			if v != "" {
				criteria[key] = v
			}
		case bool:
			if v {
				criteria[key] = "true"
			}
		}
	}
	return criteria
}

func autoFromInput(raw interface{}) (*domain.Auto, error) {
	input, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &inputError{msg: "Die Eingabe fehlt."}
	}
	a := &domain.Auto{
		Fahrgestellnummer: stringArg(input, "fahrgestellnummer"),
		Marke:             stringArg(input, "marke"),
		Modell:            stringArg(input, "modell"),
	}
	if baujahr, ok := input["baujahr"].(int); ok {
		a.Baujahr = baujahr
	}
	if artRaw := stringArg(input, "art"); artRaw != "" {
		art, ok := domain.ParseAutoArt(artRaw)
		if !ok {
			return nil, &inputError{msg: "Die Art " + artRaw + " ist keine gueltige Autoart."}
		}
		a.Art = art
	}
	preis, err := decimalArg(input, "preis")
	if err != nil {
		return nil, err
	}
	a.Preis = preis
	if merkmale, ok := input["sicherheitsmerkmale"].([]interface{}); ok {
		for _, m := range merkmale {
			if s, ok := m.(string); ok {
				a.Sicherheitsmerkmale = append(a.Sicherheitsmerkmale, s)
			}
		}
	}
	if motorRaw, ok := input["motor"].(map[string]interface{}); ok {
		drehzahl, err := decimalArg(motorRaw, "drehzahl")
		if err != nil {
			return nil, err
		}
		motor := &domain.Motor{
			Name:     stringArg(motorRaw, "name"),
			Drehzahl: drehzahl,
		}
		if ps, ok := motorRaw["ps"].(int); ok {
			motor.PS = ps
		}
		if zylinder, ok := motorRaw["zylinder"].(int); ok {
			motor.Zylinder = zylinder
		}
		a.Motor = motor
	}
	if reps, ok := input["reperaturen"].([]interface{}); ok {
		for _, repRaw := range reps {
			repInput, ok := repRaw.(map[string]interface{})
			if !ok {
				continue
			}
			kosten, err := decimalArg(repInput, "kosten")
			if err != nil {
				return nil, err
			}
			a.Reperaturen = append(a.Reperaturen, domain.Reperatur{
				Kosten:     kosten,
				Mechaniker: stringArg(repInput, "mechaniker"),
				Datum:      stringArg(repInput, "datum"),
			})
		}
	}
	return a, nil
}

func stringArg(input map[string]interface{}, key string) string {
	s, _ := input[key].(string)
	return s
}

func decimalArg(input map[string]interface{}, key string) (decimal.Decimal, error) {
	s, ok := input[key].(string)
	if !ok || s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &inputError{msg: "Der Wert " + s + " ist keine gueltige Zahl."}
	}
	return d, nil
}
