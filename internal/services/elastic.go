package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"velora_back_office/internal/database"
	"velora_back_office/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

//
// --- INDEXATION DANS ELASTICSEARCH ---
//

// IndexRefund indexe un remboursement traité pour le reporting back-office
func IndexRefund(r models.Refund) {
	if database.Elastic == nil {
		log.Println("⚠️ Elastic non initialisé, impossible d'indexer le remboursement:", r.ID)
		return
	}

	data, _ := json.Marshal(r)
	req := esapi.IndexRequest{
		Index:      "refunds",
		DocumentID: r.ID.String(),
		Body:       bytes.NewReader(data),
		Refresh:    "true", // rend la donnée immédiatement visible
	}

	res, err := req.Do(context.Background(), database.Elastic)
	if err != nil {
		log.Println("❌ Erreur envoi Elastic:", err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("⚠️ Elastic a renvoyé une erreur pour %s: %s", r.ID, res.String())
	} else {
		log.Printf("✅ Remboursement indexé dans Elasticsearch: %s", r.ID)
	}
}

//
// --- RECHERCHE DANS ELASTICSEARCH ---
//

// SearchRefunds recherche des remboursements par note, type ou commande
func SearchRefunds(query string) ([]map[string]interface{}, error) {
	if database.Elastic == nil {
		return nil, errors.New("client Elasticsearch non initialisé")
	}

	var buf bytes.Buffer
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"note", "type", "order_id", "processed_by"},
			},
		},
	}

	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("erreur encodage requête: %v", err)
	}

	req := esapi.SearchRequest{
		Index: []string{"refunds"},
		Body:  &buf,
	}
	res, err := req.Do(context.Background(), database.Elastic)
	if err != nil {
		return nil, fmt.Errorf("erreur requête Elastic: %v", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("erreur Elastic: %s", string(body))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("erreur décodage réponse Elastic: %v", err)
	}

	results := make([]map[string]interface{}, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, hit.Source)
	}
	return results, nil
}
